package model

import (
	"sort"

	mapset "github.com/deckarep/golang-set"
)

// PeerSet holds peer node addresses ("host:port"). Iteration order is
// unspecified.
type PeerSet struct {
	s mapset.Set
}

func NewPeerSet(addrs ...string) *PeerSet {
	ps := &PeerSet{s: mapset.NewSet()}
	for _, a := range addrs {
		ps.Add(a)
	}
	return ps
}

// Add returns false if the address was already present.
func (ps *PeerSet) Add(addr string) bool {
	return ps.s.Add(addr)
}

// Remove is a no-op for unknown addresses.
func (ps *PeerSet) Remove(addr string) {
	ps.s.Remove(addr)
}

func (ps *PeerSet) Contains(addr string) bool {
	return ps.s.Contains(addr)
}

func (ps *PeerSet) Len() int {
	return ps.s.Cardinality()
}

// List returns the addresses in set iteration order, which is arbitrary.
func (ps *PeerSet) List() []string {
	addrs := make([]string, 0, ps.s.Cardinality())
	for a := range ps.s.Iter() {
		addrs = append(addrs, a.(string))
	}
	return addrs
}

// Sorted returns the addresses in lexical order, for display.
func (ps *PeerSet) Sorted() []string {
	addrs := ps.List()
	sort.Strings(addrs)
	return addrs
}

// Snapshot is everything a node persists between runs.
type Snapshot struct {
	Chain []Block
	Pool  []Transaction
	Peers []string
}
