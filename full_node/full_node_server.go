package full_node

import (
	"context"
	"errors"

	"github.com/Luismorlan/powledger/network"
	"github.com/Luismorlan/powledger/utils"
	"github.com/Luismorlan/powledger/visualize"
)

// FullNodeServer exposes a full node to wallets and peers.
type FullNodeServer struct {
	network.UnimplementedFullNodeServiceServer

	fullNode *FullNode
	// Restarted when a peer block changes the tail. May be nil.
	miner *Miner
}

func NewFullNodeServer(node *FullNode, miner *Miner) *FullNodeServer {
	return &FullNodeServer{
		fullNode: node,
		miner:    miner,
	}
}

func (sev *FullNodeServer) FullNode() *FullNode {
	return sev.fullNode
}

func (sev *FullNodeServer) Miner() *Miner {
	return sev.miner
}

// Admission errors are the client's fault, anything else is ours.
func submitError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, utils.ErrInvalidAmount),
		errors.Is(err, utils.ErrInvalidSignature),
		errors.Is(err, utils.ErrInsufficientFunds),
		errors.Is(err, ErrBroadcastRejected):
		return network.StatusRejected.Error(err.Error())
	}
	return network.StatusRejected.Error("internal error: " + err.Error())
}

// SubmitTransaction adds a wallet's transaction to the pool and broadcasts it
// to peers.
func (sev *FullNodeServer) SubmitTransaction(ctx context.Context, req *network.TransactionRequest) (*network.TransactionResponse, error) {
	if err := sev.fullNode.SubmitTransaction(ctx, req.Tx, false); err != nil {
		return nil, submitError(err)
	}
	return &network.TransactionResponse{}, nil
}

// BroadcastTransaction adds a transaction relayed by a peer. It is not
// relayed any further.
func (sev *FullNodeServer) BroadcastTransaction(ctx context.Context, req *network.TransactionRequest) (*network.TransactionResponse, error) {
	if err := sev.fullNode.SubmitTransaction(ctx, req.Tx, true); err != nil {
		return nil, submitError(err)
	}
	return &network.TransactionResponse{}, nil
}

// Handle the incoming block. A block changing the tail interrupts the local
// mining round so the next one builds on the new tail.
func (sev *FullNodeServer) BroadcastBlock(ctx context.Context, req *network.BlockRequest) (*network.BlockResponse, error) {
	s, tailChange := sev.fullNode.HandleBroadcastBlock(req.Block)
	if tailChange && sev.fullNode.config.REMINE_ON_TAIL_CHANGE && sev.miner != nil {
		sev.miner.Restart()
	}
	if err := s.Error("block does not extend the local chain"); err != nil {
		return nil, err
	}
	return &network.BlockResponse{}, nil
}

func (sev *FullNodeServer) GetChain(ctx context.Context, req *network.GetChainRequest) (*network.GetChainResponse, error) {
	chain := sev.fullNode.Chain()
	return &network.GetChainResponse{Chain: chain, Length: len(chain)}, nil
}

// Balance of the requested participant, or of the node itself when none is
// given.
func (sev *FullNodeServer) GetBalance(ctx context.Context, req *network.GetBalanceRequest) (*network.GetBalanceResponse, error) {
	participant := req.Participant
	if participant == "" {
		participant = sev.fullNode.PublicKey()
	}
	if participant == "" {
		return nil, network.StatusRejected.Error("participant is missing")
	}
	return &network.GetBalanceResponse{Balance: sev.fullNode.Balance(participant)}, nil
}

func (sev *FullNodeServer) GetPendingTransactions(ctx context.Context, req *network.GetPendingTransactionsRequest) (*network.GetPendingTransactionsResponse, error) {
	return &network.GetPendingTransactionsResponse{Txs: sev.fullNode.PendingTransactions()}, nil
}

// Show renders the last d blocks and returns the path of the dot file.
func (sev *FullNodeServer) Show(d int, dir string) (string, error) {
	return visualize.Render(sev.fullNode.Chain(), d, sev.fullNode.config.NodeID(), dir)
}
