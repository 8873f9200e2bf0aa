package full_node

import (
	"context"
	"crypto/rsa"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Luismorlan/powledger/commands"
	"github.com/Luismorlan/powledger/config"
	"github.com/Luismorlan/powledger/model"
	"github.com/Luismorlan/powledger/network"
	"github.com/Luismorlan/powledger/utils"
	"github.com/Luismorlan/powledger/wallet"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const KEY_BITS = 1024

var errUnreachable = errors.New("connection refused")

// Transport answering from in-memory tables.
type fakeTransport struct {
	m           sync.Mutex
	chains      map[string][]model.Block
	unreachable map[string]bool
	txStatus    network.Status
	blockStatus network.Status
	txs         map[string][]model.Transaction
	blocks      map[string][]model.Block
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		chains:      map[string][]model.Block{},
		unreachable: map[string]bool{},
		txs:         map[string][]model.Transaction{},
		blocks:      map[string][]model.Block{},
	}
}

func (ft *fakeTransport) BroadcastTransaction(ctx context.Context, peer string, tx *model.Transaction) (network.Status, error) {
	ft.m.Lock()
	defer ft.m.Unlock()
	if ft.unreachable[peer] {
		return network.StatusRejected, errUnreachable
	}
	ft.txs[peer] = append(ft.txs[peer], *tx)
	return ft.txStatus, nil
}

func (ft *fakeTransport) BroadcastBlock(ctx context.Context, peer string, b *model.Block) (network.Status, error) {
	ft.m.Lock()
	defer ft.m.Unlock()
	if ft.unreachable[peer] {
		return network.StatusRejected, errUnreachable
	}
	ft.blocks[peer] = append(ft.blocks[peer], *b)
	return ft.blockStatus, nil
}

func (ft *fakeTransport) FetchChain(ctx context.Context, peer string) ([]model.Block, error) {
	ft.m.Lock()
	defer ft.m.Unlock()
	if ft.unreachable[peer] {
		return nil, errUnreachable
	}
	return ft.chains[peer], nil
}

// Snapshot store keeping the last saved snapshot in memory.
type memStore struct {
	saved *model.Snapshot
	saves int
	err   error
}

func (s *memStore) Save(snap *model.Snapshot) error {
	if s.err != nil {
		return s.err
	}
	s.saves++
	s.saved = &model.Snapshot{
		Chain: append([]model.Block{}, snap.Chain...),
		Pool:  append([]model.Transaction{}, snap.Pool...),
		Peers: append([]string{}, snap.Peers...),
	}
	return nil
}

func (s *memStore) Load() (*model.Snapshot, error) {
	return s.saved, s.err
}

func createTestConfig() config.AppConfig {
	c := config.Default()
	c.NODE_ID = "test"
	c.RETRY_INTERVAL_MS = 10
	return c
}

func createTestKey(t *testing.T) *rsa.PrivateKey {
	sk, _ := utils.GenerateKeyPair(KEY_BITS)
	require.NotNil(t, sk)
	return sk
}

func pk(sk *rsa.PrivateKey) string {
	return utils.PublicKeyToHex(&sk.PublicKey)
}

func createTestNode(t *testing.T, sk *rsa.PrivateKey, opts ...Option) *FullNode {
	opts = append([]Option{
		WithIdentity(sk),
		WithLogger(utils.DiscardLogger()),
		WithClock(func() time.Time { return time.Unix(1600000000, 0) }),
	}, opts...)
	return NewFullNode(createTestConfig(), wallet.Verifier{}, opts...)
}

func mine(t *testing.T, f *FullNode) *model.Block {
	b, _, err := f.MineBlock(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, b)
	return b
}

func createTestTx(t *testing.T, from *rsa.PrivateKey, to *rsa.PrivateKey, amount float64) model.Transaction {
	tx, err := wallet.CreateTransaction(from, pk(to), amount)
	require.NoError(t, err)
	return *tx
}

// Chain of n mined blocks after genesis, from an unrelated miner.
func createPeerChain(t *testing.T, n int) []model.Block {
	f := createTestNode(t, createTestKey(t))
	for i := 0; i < n; i++ {
		mine(t, f)
	}
	return f.Chain()
}

func assertSameChain(t *testing.T, want, got []model.Block) {
	t.Helper()
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("chain mismatch (-want +got):\n%s", diff)
	}
}

func TestTransferScenario(t *testing.T) {
	a, b := createTestKey(t), createTestKey(t)
	f := createTestNode(t, a)
	assert.Len(t, f.Chain(), 1)

	mine(t, f)
	assert.Equal(t, 10.0, f.Balance(pk(a)))

	require.NoError(t, f.SubmitTransaction(context.Background(), createTestTx(t, a, b, 5), false))
	assert.Len(t, f.PendingTransactions(), 1)
	// Outgoing pending funds count, incoming ones don't.
	assert.Equal(t, 5.0, f.Balance(pk(a)))
	assert.Equal(t, 0.0, f.Balance(pk(b)))

	block := mine(t, f)
	assert.Len(t, block.Transactions, 2)
	assert.True(t, block.Transactions[1].IsReward())
	assert.Len(t, f.Chain(), 3)
	assert.Empty(t, f.PendingTransactions())
	assert.Equal(t, 15.0, f.Balance(pk(a)))
	assert.Equal(t, 5.0, f.Balance(pk(b)))
	assert.True(t, utils.VerifyChain(f.Chain(), f.config.DIFFICULTY))
}

func TestMiningCreditsExactlyTheReward(t *testing.T) {
	a := createTestKey(t)
	f := createTestNode(t, a)
	for i := 0; i < 3; i++ {
		before := f.Balance(pk(a))
		b := mine(t, f)
		assert.Equal(t, int64(i+1), b.Index)
		assert.Equal(t, before+10, f.Balance(pk(a)))
		assert.Equal(t, int64(1600000000), b.Timestamp)
	}
	assert.Equal(t, int64(3), f.Height())
}

func TestSubmitInsufficientFunds(t *testing.T) {
	a, b := createTestKey(t), createTestKey(t)
	f := createTestNode(t, a)
	mine(t, f)

	err := f.SubmitTransaction(context.Background(), createTestTx(t, a, b, 10.5), false)
	assert.ErrorIs(t, err, utils.ErrInsufficientFunds)
	assert.Empty(t, f.PendingTransactions())

	// Two pending spends can't exceed the balance together.
	require.NoError(t, f.SubmitTransaction(context.Background(), createTestTx(t, a, b, 6), false))
	err = f.SubmitTransaction(context.Background(), createTestTx(t, a, b, 6), false)
	assert.ErrorIs(t, err, utils.ErrInsufficientFunds)
	assert.Len(t, f.PendingTransactions(), 1)
	assert.GreaterOrEqual(t, f.Balance(pk(a)), 0.0)
}

func TestSubmitInvalidSignature(t *testing.T) {
	a, b := createTestKey(t), createTestKey(t)
	f := createTestNode(t, a)
	mine(t, f)

	tx := createTestTx(t, a, b, 1)
	tx.Amount = 2
	assert.ErrorIs(t, f.SubmitTransaction(context.Background(), tx, false), utils.ErrInvalidSignature)

	reward := model.NewRewardTransaction(pk(b), 0)
	assert.Error(t, f.SubmitTransaction(context.Background(), reward, true))
	assert.Empty(t, f.PendingTransactions())
}

func TestSubmitInvalidAmount(t *testing.T) {
	a, b := createTestKey(t), createTestKey(t)
	f := createTestNode(t, a)
	mine(t, f)
	assert.ErrorIs(t, f.SubmitTransaction(context.Background(), createTestTx(t, a, b, -1), false), utils.ErrInvalidAmount)
}

func TestMineWithoutIdentity(t *testing.T) {
	f := NewFullNode(createTestConfig(), wallet.Verifier{}, WithLogger(utils.DiscardLogger()))
	b, _, err := f.MineBlock(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoIdentity)
	assert.Nil(t, b)
	assert.Len(t, f.Chain(), 1)
	assert.Equal(t, "", f.PublicKey())
}

func TestMineRejectsTamperedPool(t *testing.T) {
	a, b := createTestKey(t), createTestKey(t)
	f := createTestNode(t, a)
	mine(t, f)

	tx := createTestTx(t, a, b, 1)
	tx.Recipient = pk(a)
	f.txPool.Add(tx)

	blk, _, err := f.MineBlock(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidPoolTransaction)
	assert.Nil(t, blk)
	assert.Len(t, f.Chain(), 2)
	assert.Len(t, f.PendingTransactions(), 1)
}

func TestReceiveBlock(t *testing.T) {
	a, b := createTestKey(t), createTestKey(t)
	miner := createTestNode(t, a)
	f := createTestNode(t, b)

	b1 := mine(t, miner)
	require.NoError(t, f.ReceiveBlock(*b1))
	assert.Equal(t, 10.0, f.Balance(pk(a)))

	tx := createTestTx(t, a, b, 4)
	require.NoError(t, miner.SubmitTransaction(context.Background(), tx, false))
	require.NoError(t, f.SubmitTransaction(context.Background(), tx, true))
	assert.Len(t, f.PendingTransactions(), 1)

	b2 := mine(t, miner)
	require.NoError(t, f.ReceiveBlock(*b2))
	assert.Empty(t, f.PendingTransactions())
	assert.Equal(t, 4.0, f.Balance(pk(b)))
	assertSameChain(t, miner.Chain(), f.Chain())
	assert.True(t, utils.VerifyChain(f.Chain(), f.config.DIFFICULTY))

	// Already appended.
	assert.ErrorIs(t, f.ReceiveBlock(*b2), ErrInvalidBlock)
}

func TestReceiveInvalidBlock(t *testing.T) {
	miner := createTestNode(t, createTestKey(t))
	f := createTestNode(t, createTestKey(t))
	b := mine(t, miner)

	badProof := *b
	for utils.ValidProof(badProof.PayloadTransactions(), badProof.PreviousHash, badProof.Proof, 2) {
		badProof.Proof++
	}
	assert.ErrorIs(t, f.ReceiveBlock(badProof), ErrInvalidBlock)

	badLink := *b
	badLink.PreviousHash = "00"
	assert.ErrorIs(t, f.ReceiveBlock(badLink), ErrInvalidBlock)

	badIndex := *b
	badIndex.Index = 5
	assert.ErrorIs(t, f.ReceiveBlock(badIndex), ErrInvalidBlock)

	assert.Len(t, f.Chain(), 1)
}

func TestHandleBroadcastBlock(t *testing.T) {
	miner := createTestNode(t, createTestKey(t))
	f := createTestNode(t, createTestKey(t))
	b1 := mine(t, miner)
	b2 := mine(t, miner)

	s, tail := f.HandleBroadcastBlock(*b2)
	assert.Equal(t, network.StatusOK, s)
	assert.False(t, tail)
	assert.True(t, f.NeedsResolution())

	s, tail = f.HandleBroadcastBlock(*b1)
	assert.Equal(t, network.StatusOK, s)
	assert.True(t, tail)

	s, tail = f.HandleBroadcastBlock(*b1)
	assert.Equal(t, network.StatusConflict, s)
	assert.False(t, tail)

	bad := *b2
	bad.Proof++
	for utils.ValidProof(bad.PayloadTransactions(), bad.PreviousHash, bad.Proof, 2) {
		bad.Proof++
	}
	s, tail = f.HandleBroadcastBlock(bad)
	assert.Equal(t, network.StatusConflict, s)
	assert.False(t, tail)
	assert.Len(t, f.Chain(), 2)
}

func TestResolveConflicts(t *testing.T) {
	ft := newFakeTransport()
	a, b := createTestKey(t), createTestKey(t)
	f := createTestNode(t, a, WithTransport(ft))
	mine(t, f)
	require.NoError(t, f.SubmitTransaction(context.Background(), createTestTx(t, a, b, 1), false))

	longer := createPeerChain(t, 3)
	longest := createPeerChain(t, 4)
	invalid := createPeerChain(t, 6)
	invalid[3].Proof++
	for utils.ValidProof(invalid[3].PayloadTransactions(), invalid[3].PreviousHash, invalid[3].Proof, 2) {
		invalid[3].Proof++
	}

	ft.chains["p1"] = longer
	ft.chains["p2"] = longest
	ft.chains["p3"] = invalid
	ft.chains["p4"] = createPeerChain(t, 1)
	ft.unreachable["p5"] = true
	for _, p := range []string{"p1", "p2", "p3", "p4", "p5"} {
		f.AddPeer(p)
	}
	f.needsResolution = true

	assert.True(t, f.ResolveConflicts(context.Background()))
	assertSameChain(t, longest, f.Chain())
	assert.Empty(t, f.PendingTransactions())
	assert.False(t, f.NeedsResolution())
	assert.Equal(t, 0.0, f.Balance(pk(a)))
}

func TestResolveConflictsKeepsEqualLength(t *testing.T) {
	ft := newFakeTransport()
	a, b := createTestKey(t), createTestKey(t)
	f := createTestNode(t, a, WithTransport(ft))
	mine(t, f)
	mine(t, f)
	require.NoError(t, f.SubmitTransaction(context.Background(), createTestTx(t, a, b, 1), false))
	local := f.Chain()

	ft.chains["p1"] = createPeerChain(t, 2)
	ft.chains["p2"] = createPeerChain(t, 1)
	f.AddPeer("p1")
	f.AddPeer("p2")
	f.needsResolution = true

	assert.False(t, f.ResolveConflicts(context.Background()))
	assertSameChain(t, local, f.Chain())
	assert.Len(t, f.PendingTransactions(), 1)
	assert.False(t, f.NeedsResolution())
}

func TestBroadcastTransaction(t *testing.T) {
	ft := newFakeTransport()
	a, b := createTestKey(t), createTestKey(t)
	f := createTestNode(t, a, WithTransport(ft))
	mine(t, f)
	f.AddPeer("p1")
	f.AddPeer("p2")
	ft.unreachable["p2"] = true

	tx := createTestTx(t, a, b, 1)
	require.NoError(t, f.SubmitTransaction(context.Background(), tx, false))
	assert.Equal(t, []model.Transaction{tx}, ft.txs["p1"])

	// Relayed transactions are not relayed again.
	require.NoError(t, f.SubmitTransaction(context.Background(), createTestTx(t, a, b, 2), true))
	assert.Len(t, ft.txs["p1"], 1)
}

func TestBroadcastTransactionRejected(t *testing.T) {
	ft := newFakeTransport()
	ft.txStatus = network.StatusRejected
	a, b := createTestKey(t), createTestKey(t)
	f := createTestNode(t, a, WithTransport(ft))
	mine(t, f)
	f.AddPeer("p1")

	err := f.SubmitTransaction(context.Background(), createTestTx(t, a, b, 1), false)
	assert.ErrorIs(t, err, ErrBroadcastRejected)
	// No local rollback.
	assert.Len(t, f.PendingTransactions(), 1)
}

func TestBroadcastBlockConflictSetsFlag(t *testing.T) {
	ft := newFakeTransport()
	f := createTestNode(t, createTestKey(t), WithTransport(ft))
	f.AddPeer("p1")
	f.AddPeer("p2")
	ft.unreachable["p2"] = true

	b := mine(t, f)
	assert.Equal(t, []model.Block{*b}, ft.blocks["p1"])
	assert.False(t, f.NeedsResolution())

	ft.blockStatus = network.StatusConflict
	mine(t, f)
	assert.True(t, f.NeedsResolution())
}

func TestPeers(t *testing.T) {
	store := &memStore{}
	f := createTestNode(t, createTestKey(t), WithSnapshotStore(store))
	assert.True(t, f.AddPeer("localhost:5001"))
	assert.False(t, f.AddPeer("localhost:5001"))
	assert.True(t, f.AddPeer("127.0.0.1:5002"))
	assert.Equal(t, []string{"127.0.0.1:5002", "localhost:5001"}, f.Peers())
	assert.Equal(t, []string{"127.0.0.1:5002", "localhost:5001"}, store.saved.Peers)

	f.RemovePeer("localhost:5001")
	f.RemovePeer("unknown")
	assert.Equal(t, []string{"127.0.0.1:5002"}, f.Peers())
	assert.Equal(t, []string{"127.0.0.1:5002"}, store.saved.Peers)
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := &memStore{}
	a, b := createTestKey(t), createTestKey(t)
	f := createTestNode(t, a, WithSnapshotStore(store))
	mine(t, f)
	require.NoError(t, f.SubmitTransaction(context.Background(), createTestTx(t, a, b, 3), false))
	f.AddPeer("localhost:5001")

	g := createTestNode(t, b, WithSnapshotStore(store))
	assertSameChain(t, f.Chain(), g.Chain())
	if diff := cmp.Diff(f.PendingTransactions(), g.PendingTransactions(), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("pool mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, f.Peers(), g.Peers())
	assert.Equal(t, 7.0, g.Balance(pk(a)))
}

func TestInvalidSnapshotIsDiscarded(t *testing.T) {
	store := &memStore{}
	f := createTestNode(t, createTestKey(t), WithSnapshotStore(store))
	mine(t, f)
	store.saved.Chain[1].PreviousHash = "broken"

	g := createTestNode(t, createTestKey(t), WithSnapshotStore(store))
	assert.Len(t, g.Chain(), 1)
}

func TestStorageFailureIsNotFatal(t *testing.T) {
	store := &memStore{err: errors.New("disk full")}
	f := createTestNode(t, createTestKey(t), WithSnapshotStore(store))
	mine(t, f)
	assert.Len(t, f.Chain(), 2)
}

// Hold the proof search of f until release is closed. started is closed once
// the search begins, after the pool and tip were read.
func gateMining(f *FullNode) (started chan struct{}, release chan struct{}) {
	started, release = make(chan struct{}), make(chan struct{})
	f.mine = func(txs []model.Transaction, lastHash string, difficulty int, ctl <-chan commands.Command) (int64, commands.Command, error) {
		close(started)
		<-release
		return utils.Mine(txs, lastHash, difficulty, ctl)
	}
	return started, release
}

func mineInBackground(f *FullNode) <-chan error {
	errs := make(chan error, 1)
	go func() {
		_, _, err := f.MineBlock(context.Background(), nil)
		errs <- err
	}()
	return errs
}

func TestMineDiscardsBlockWhenTipMoves(t *testing.T) {
	a, b := createTestKey(t), createTestKey(t)
	f := createTestNode(t, a)
	mine(t, f)
	tx := createTestTx(t, a, b, 1)
	require.NoError(t, f.SubmitTransaction(context.Background(), tx, false))

	// Another miner extends the same tip.
	other := createTestNode(t, createTestKey(t))
	other.chain.Replace(f.Chain())
	peerBlock := mine(t, other)

	started, release := gateMining(f)
	errs := mineInBackground(f)
	<-started
	require.NoError(t, f.ReceiveBlock(*peerBlock))
	close(release)

	assert.ErrorIs(t, <-errs, ErrStaleTip)
	assert.Equal(t, int64(2), f.Height())
	assertSameChain(t, other.Chain(), f.Chain())
	assert.Equal(t, []model.Transaction{tx}, f.PendingTransactions())
	assert.Equal(t, 9.0, f.Balance(pk(a)))
}

func TestSubmitWhileMiningStaysPending(t *testing.T) {
	a, b := createTestKey(t), createTestKey(t)
	f := createTestNode(t, a)
	mine(t, f)
	first := createTestTx(t, a, b, 1)
	second := createTestTx(t, a, b, 2)
	require.NoError(t, f.SubmitTransaction(context.Background(), first, false))

	started, release := gateMining(f)
	errs := mineInBackground(f)
	<-started
	require.NoError(t, f.SubmitTransaction(context.Background(), second, false))
	close(release)

	require.NoError(t, <-errs)
	chain := f.Chain()
	require.Len(t, chain, 3)
	assert.Equal(t, []model.Transaction{first}, chain[2].PayloadTransactions())
	assert.Equal(t, []model.Transaction{second}, f.PendingTransactions())
	assert.Equal(t, 1.0, f.Balance(pk(b)))
	assert.Equal(t, 17.0, f.Balance(pk(a)))
}

func TestConcurrentSubmitMineReceive(t *testing.T) {
	a, b, c := createTestKey(t), createTestKey(t), createTestKey(t)
	f := createTestNode(t, a)
	for i := 0; i < 3; i++ {
		mine(t, f)
	}

	// Blocks 4 and 5 from another miner, valid on top of the current tip.
	other := createTestNode(t, c)
	other.chain.Replace(f.Chain())
	peerBlocks := []model.Block{*mine(t, other), *mine(t, other)}

	txs := make([]model.Transaction, 8)
	for i := range txs {
		txs[i] = createTestTx(t, a, b, 1)
	}

	var wg sync.WaitGroup
	submitErrs := make(chan error, len(txs))
	mineErrs := make(chan error, 4)
	receiveErrs := make(chan error, len(peerBlocks))
	for i := range txs {
		wg.Add(1)
		go func(tx model.Transaction) {
			defer wg.Done()
			submitErrs <- f.SubmitTransaction(context.Background(), tx, false)
		}(txs[i])
	}
	for i := 0; i < cap(mineErrs); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.MineBlock(context.Background(), nil)
			mineErrs <- err
		}()
	}
	for i := range peerBlocks {
		wg.Add(1)
		go func(pb model.Block) {
			defer wg.Done()
			receiveErrs <- f.ReceiveBlock(pb)
		}(peerBlocks[i])
	}
	wg.Wait()
	close(submitErrs)
	close(mineErrs)
	close(receiveErrs)

	for err := range submitErrs {
		assert.NoError(t, err)
	}
	for err := range mineErrs {
		if err != nil {
			assert.ErrorIs(t, err, ErrStaleTip)
		}
	}
	for err := range receiveErrs {
		if err != nil {
			assert.ErrorIs(t, err, ErrInvalidBlock)
		}
	}

	chain := f.Chain()
	assert.True(t, utils.VerifyChain(chain, f.config.DIFFICULTY))
	for _, sk := range []*rsa.PrivateKey{a, b, c} {
		assert.GreaterOrEqual(t, f.Balance(pk(sk)), 0.0)
	}

	// Every admitted transaction is either in one block or still pending.
	pending := f.PendingTransactions()
	for _, tx := range txs {
		seen := 0
		for i := range chain {
			for _, btx := range chain[i].PayloadTransactions() {
				if btx.Matches(&tx) {
					seen++
				}
			}
		}
		for _, ptx := range pending {
			if ptx.Matches(&tx) {
				seen++
			}
		}
		assert.Equal(t, 1, seen)
	}
}

func TestMinedBlockIsACopy(t *testing.T) {
	f := createTestNode(t, createTestKey(t))
	b := mine(t, f)
	b.Transactions[0].Amount = 1000
	assert.Equal(t, 10.0, f.Chain()[1].Transactions[0].Amount)
}
