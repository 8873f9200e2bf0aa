// Package snapshot persists the state of a node: its chain, its pending
// transactions and its peers, as three JSON documents.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Luismorlan/powledger/model"
)

var ErrCorrupted = errors.New("snapshot is corrupted")

// Store saves and loads node snapshots. Load returns nil and no error when
// nothing was saved yet.
type Store interface {
	Save(s *model.Snapshot) error
	Load() (*model.Snapshot, error)
	Close() error
}

// encode returns the chain, pool and peers documents.
func encode(s *model.Snapshot) ([3][]byte, error) {
	var docs [3][]byte
	chain := s.Chain
	if chain == nil {
		chain = []model.Block{}
	}
	pool := s.Pool
	if pool == nil {
		pool = []model.Transaction{}
	}
	peers := s.Peers
	if peers == nil {
		peers = []string{}
	}
	var err error
	if docs[0], err = json.Marshal(chain); err != nil {
		return docs, err
	}
	if docs[1], err = json.Marshal(pool); err != nil {
		return docs, err
	}
	if docs[2], err = json.Marshal(peers); err != nil {
		return docs, err
	}
	return docs, nil
}

func decode(docs [3][]byte) (*model.Snapshot, error) {
	s := &model.Snapshot{}
	if err := json.Unmarshal(docs[0], &s.Chain); err != nil {
		return nil, fmt.Errorf("%w: chain: %v", ErrCorrupted, err)
	}
	if err := json.Unmarshal(docs[1], &s.Pool); err != nil {
		return nil, fmt.Errorf("%w: pool: %v", ErrCorrupted, err)
	}
	if err := json.Unmarshal(docs[2], &s.Peers); err != nil {
		return nil, fmt.Errorf("%w: peers: %v", ErrCorrupted, err)
	}
	if len(s.Chain) == 0 {
		return nil, fmt.Errorf("%w: chain is empty", ErrCorrupted)
	}
	return s, nil
}
