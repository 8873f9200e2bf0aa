package full_node

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Luismorlan/powledger/commands"
	"github.com/Luismorlan/powledger/config"
	"github.com/Luismorlan/powledger/model"
	"github.com/Luismorlan/powledger/network"
	"github.com/Luismorlan/powledger/utils"
)

var (
	ErrNoIdentity             = errors.New("node has no identity to receive the mining reward")
	ErrInvalidPoolTransaction = errors.New("pool holds a transaction with an invalid signature")
	ErrInvalidBlock           = errors.New("block is invalid")
	ErrStaleTip               = errors.New("tip changed while mining, block discarded")
	ErrBroadcastRejected      = errors.New("a peer rejected the transaction")
)

// PeerTransport delivers messages to other full nodes. A non nil error
// means the peer could not be reached and is skipped.
type PeerTransport interface {
	BroadcastTransaction(ctx context.Context, peer string, tx *model.Transaction) (network.Status, error)
	BroadcastBlock(ctx context.Context, peer string, b *model.Block) (network.Status, error)
	FetchChain(ctx context.Context, peer string) ([]model.Block, error)
}

// SnapshotStore persists the node state. Load returns nil when there is no
// prior state.
type SnapshotStore interface {
	Save(s *model.Snapshot) error
	Load() (*model.Snapshot, error)
}

// A full node should maintain the blockchain, and update the blockchain.
type FullNode struct {
	// The blockchain it needs to maintain.
	chain *model.Chain
	// Transaction pool it need to maintain. Incoming transaction are added to this pool.
	txPool *model.TransactionPool
	// Addresses of the other full nodes.
	peers *model.PeerSet
	// Set when a peer answered a block broadcast with a conflict. Cleared by
	// every resolution.
	needsResolution bool

	// Private key of the node. The reward of mined blocks goes to its public
	// key. Nil for a node that only relays.
	keys      *rsa.PrivateKey
	verifier  utils.SignatureVerifier
	transport PeerTransport
	store     SnapshotStore
	logger    *slog.Logger
	now       func() time.Time
	// Proof search, utils.Mine outside of tests.
	mine func(txs []model.Transaction, lastHash string, difficulty int, ctl <-chan commands.Command) (int64, commands.Command, error)

	// Blockchain config.
	config config.AppConfig
	// A single mutex for changing internal state.
	m sync.RWMutex
}

type Option func(*FullNode)

// Mine with this key. Without it the node cannot mine.
func WithIdentity(sk *rsa.PrivateKey) Option {
	return func(f *FullNode) { f.keys = sk }
}

func WithTransport(t PeerTransport) Option {
	return func(f *FullNode) { f.transport = t }
}

func WithSnapshotStore(s SnapshotStore) Option {
	return func(f *FullNode) { f.store = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(f *FullNode) { f.logger = l }
}

// Source of block timestamps.
func WithClock(now func() time.Time) Option {
	return func(f *FullNode) { f.now = now }
}

// Create a full node holding the genesis block, or whatever valid state its
// snapshot store holds.
func NewFullNode(c config.AppConfig, verifier utils.SignatureVerifier, opts ...Option) *FullNode {
	f := &FullNode{
		chain:    model.NewChain(),
		txPool:   model.NewTransactionPool(),
		peers:    model.NewPeerSet(c.PEERS...),
		verifier: verifier,
		config:   c,
		now:      time.Now,
		mine:     utils.Mine,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = utils.NewLogger(nil)
	}
	f.loadSnapshot()
	return f
}

func (f *FullNode) loadSnapshot() {
	if f.store == nil {
		return
	}
	s, err := f.store.Load()
	if err != nil {
		f.logger.Warn("failed to load snapshot, starting from genesis", "error", err)
		return
	}
	if s == nil {
		return
	}
	if !utils.VerifyChain(s.Chain, f.config.DIFFICULTY) || s.Chain[0].Index != 0 {
		f.logger.Warn("discarding snapshot with an invalid chain", "length", len(s.Chain))
		return
	}
	f.chain.Replace(s.Chain)
	for _, tx := range s.Pool {
		f.txPool.Add(tx)
	}
	for _, p := range s.Peers {
		f.peers.Add(p)
	}
	f.logger.Info("loaded snapshot", "height", f.chain.Tip().Index, "pending", f.txPool.Len(), "peers", f.peers.Len())
}

// Caller must hold f.m.
func (f *FullNode) persistLocked() {
	if f.store == nil {
		return
	}
	err := f.store.Save(&model.Snapshot{
		Chain: f.chain.Blocks,
		Pool:  f.txPool.Txs,
		Peers: f.peers.Sorted(),
	})
	if err != nil {
		f.logger.Warn("failed to save snapshot", "error", err)
	}
}

// Caller must hold f.m.
func (f *FullNode) balanceLocked(participant string) float64 {
	return utils.GetBalance(participant, f.chain.Blocks, f.txPool.Txs)
}

// Caller must hold f.m for writing.
func (f *FullNode) admitTransaction(tx *model.Transaction) error {
	if err := utils.VerifyTransaction(tx, f.balanceLocked, f.verifier, true); err != nil {
		return err
	}
	f.txPool.Add(*tx)
	return nil
}

// SubmitTransaction admits tx to the pool and, unless it came from a peer,
// relays it to every peer. A peer rejecting it stops the relay and returns
// ErrBroadcastRejected, the transaction stays in the local pool.
func (f *FullNode) SubmitTransaction(ctx context.Context, tx model.Transaction, fromNetwork bool) error {
	f.m.Lock()
	if err := f.admitTransaction(&tx); err != nil {
		f.m.Unlock()
		return err
	}
	f.persistLocked()
	peers := f.peers.List()
	f.m.Unlock()

	if fromNetwork || f.transport == nil {
		return nil
	}
	for _, peer := range peers {
		s, err := f.transport.BroadcastTransaction(ctx, peer, &tx)
		if err != nil {
			f.logger.Debug("peer skipped", "peer", peer, "error", err)
			continue
		}
		if s == network.StatusRejected {
			f.logger.Warn("peer rejected transaction", "peer", peer)
			return ErrBroadcastRejected
		}
	}
	return nil
}

// MineBlock mines the pending transactions on top of the current tip. The
// proof search runs without holding the lock and stops early when anything
// arrives on ctl, that command is returned.
func (f *FullNode) MineBlock(ctx context.Context, ctl <-chan commands.Command) (*model.Block, commands.Command, error) {
	if f.keys == nil {
		return nil, commands.NewDefaultCommand(), ErrNoIdentity
	}

	f.m.RLock()
	txs, err := f.txPool.List()
	tip := f.chain.Tip()
	lastHash := utils.HashBlock(tip)
	index := tip.Index + 1
	f.m.RUnlock()
	if err != nil {
		return nil, commands.NewDefaultCommand(), err
	}

	if !utils.VerifyTransactions(txs, f.verifier) {
		return nil, commands.NewDefaultCommand(), ErrInvalidPoolTransaction
	}

	// Mining is a really heavy task.
	proof, c, err := f.mine(txs, lastHash, f.config.DIFFICULTY, ctl)
	if err != nil {
		return nil, c, err
	}

	blockTxs := make([]model.Transaction, 0, len(txs)+1)
	blockTxs = append(blockTxs, txs...)
	blockTxs = append(blockTxs, model.NewRewardTransaction(f.PublicKey(), f.config.MINING_REWARD))
	block := model.Block{
		Index:        index,
		PreviousHash: lastHash,
		Transactions: blockTxs,
		Proof:        proof,
		Timestamp:    f.now().Unix(),
	}

	f.m.Lock()
	if utils.TipHash(f.chain.Blocks) != lastHash {
		f.m.Unlock()
		return nil, commands.NewDefaultCommand(), ErrStaleTip
	}
	f.chain.Append(block)
	// Transactions submitted while mining stay pending.
	for i := range txs {
		f.txPool.RemoveMatching(&txs[i])
	}
	f.persistLocked()
	peers := f.peers.List()
	f.m.Unlock()

	f.logger.Info("mined block", "index", block.Index, "transactions", len(txs), "hash", utils.HashBlock(&block))
	f.broadcastBlock(ctx, &block, peers)
	// The appended block keeps its own transactions.
	mined := block
	mined.Transactions = append([]model.Transaction{}, block.Transactions...)
	return &mined, commands.NewDefaultCommand(), nil
}

// Best effort, unreachable or rejecting peers are skipped. A conflict means
// the peer may hold a longer chain, that is resolved later.
func (f *FullNode) broadcastBlock(ctx context.Context, b *model.Block, peers []string) {
	if f.transport == nil {
		return
	}
	for _, peer := range peers {
		s, err := f.transport.BroadcastBlock(ctx, peer, b)
		if err != nil {
			f.logger.Debug("peer skipped", "peer", peer, "error", err)
			continue
		}
		switch s {
		case network.StatusConflict:
			f.logger.Info("peer reported a conflicting chain", "peer", peer)
			f.m.Lock()
			f.needsResolution = true
			f.m.Unlock()
		case network.StatusRejected:
			f.logger.Warn("peer rejected block", "peer", peer, "index", b.Index)
		}
	}
}

// ReceiveBlock appends a block mined elsewhere if it directly extends the
// tip, and drops its transactions from the pool.
func (f *FullNode) ReceiveBlock(b model.Block) error {
	f.m.Lock()
	defer f.m.Unlock()
	return f.receiveBlockLocked(&b)
}

// Caller must hold f.m for writing.
func (f *FullNode) receiveBlockLocked(b *model.Block) error {
	if err := utils.ValidateNextBlock(f.chain.Tip(), b, f.config.DIFFICULTY); err != nil {
		f.logger.Info("rejected block", "index", b.Index, "error", err)
		return fmt.Errorf("%w: %v", ErrInvalidBlock, err)
	}
	f.chain.Append(*b)
	for i := range b.Transactions {
		for f.txPool.RemoveMatching(&b.Transactions[i]) {
		}
	}
	f.persistLocked()
	f.logger.Info("received block", "index", b.Index, "transactions", len(b.Transactions))
	return nil
}

// HandleBroadcastBlock answers a block announced by a peer. tailChanged is
// true when the block was appended.
func (f *FullNode) HandleBroadcastBlock(b model.Block) (s network.Status, tailChanged bool) {
	f.m.Lock()
	defer f.m.Unlock()
	tip := f.chain.Tip().Index
	switch {
	case b.Index == tip+1:
		if err := f.receiveBlockLocked(&b); err != nil {
			return network.StatusConflict, false
		}
		return network.StatusOK, true
	case b.Index > tip+1:
		// We are behind, catch up later.
		f.needsResolution = true
		return network.StatusOK, false
	default:
		return network.StatusConflict, false
	}
}

// ResolveConflicts replaces the local chain with the longest valid chain of
// the peers, if strictly longer. Unreachable peers are skipped. Replacing
// the chain drops every pending transaction.
func (f *FullNode) ResolveConflicts(ctx context.Context) bool {
	f.m.Lock()
	f.needsResolution = false
	peers := f.peers.List()
	f.m.Unlock()

	candidates := make([][]model.Block, 0, len(peers))
	if f.transport != nil {
		for _, peer := range peers {
			chain, err := f.transport.FetchChain(ctx, peer)
			if err != nil {
				f.logger.Debug("peer skipped", "peer", peer, "error", err)
				continue
			}
			candidates = append(candidates, chain)
		}
	}

	f.m.Lock()
	defer f.m.Unlock()
	winner, replaced := utils.ResolveLongestChain(f.chain.Blocks, candidates, f.config.DIFFICULTY)
	if replaced {
		f.chain.Replace(winner)
		f.txPool.Clear()
		f.logger.Info("replaced local chain", "height", f.chain.Tip().Index)
	}
	f.persistLocked()
	return replaced
}

// AddPeer returns false if the peer was already known.
func (f *FullNode) AddPeer(addr string) bool {
	f.m.Lock()
	defer f.m.Unlock()
	added := f.peers.Add(addr)
	f.persistLocked()
	return added
}

func (f *FullNode) RemovePeer(addr string) {
	f.m.Lock()
	f.peers.Remove(addr)
	f.persistLocked()
	f.m.Unlock()
	if t, ok := f.transport.(interface{ Forget(string) }); ok {
		t.Forget(addr)
	}
}

// Spendable balance of participant.
func (f *FullNode) Balance(participant string) float64 {
	f.m.RLock()
	defer f.m.RUnlock()
	return f.balanceLocked(participant)
}

// Return a deep copy of the chain, nil if it could not be copied.
func (f *FullNode) Chain() []model.Block {
	f.m.RLock()
	defer f.m.RUnlock()
	blocks, err := f.chain.Copy()
	if err != nil {
		f.logger.Error("failed to copy chain", "error", err)
		return nil
	}
	return blocks
}

func (f *FullNode) PendingTransactions() []model.Transaction {
	f.m.RLock()
	defer f.m.RUnlock()
	txs, err := f.txPool.List()
	if err != nil {
		f.logger.Error("failed to copy pending transactions", "error", err)
		return nil
	}
	return txs
}

func (f *FullNode) Peers() []string {
	f.m.RLock()
	defer f.m.RUnlock()
	return f.peers.Sorted()
}

// Hex encoded public key of the node, empty without identity.
func (f *FullNode) PublicKey() string {
	if f.keys == nil {
		return ""
	}
	return utils.PublicKeyToHex(&f.keys.PublicKey)
}

func (f *FullNode) NeedsResolution() bool {
	f.m.RLock()
	defer f.m.RUnlock()
	return f.needsResolution
}

// Index of the tip block.
func (f *FullNode) Height() int64 {
	f.m.RLock()
	defer f.m.RUnlock()
	return f.chain.Tip().Index
}

func (f *FullNode) Config() config.AppConfig {
	return f.config
}
