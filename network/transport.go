package network

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Luismorlan/powledger/model"
	"google.golang.org/grpc"
)

// Returned when a peer could not be reached or gave no usable answer.
var ErrPeerUnavailable = errors.New("peer unavailable")

// Dial opens a client connection to a full node. The connection is lazy, an
// unreachable node only shows up as an error on the first call.
func Dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithInsecure()}, opts...)
	return grpc.Dial(addr, opts...)
}

// Transport talks to peer full nodes. Connections are opened on first use
// and kept until Close.
type Transport struct {
	// Deadline of every single call to a peer.
	timeout time.Duration
	// Extra options used when dialing a peer.
	dialOpts []grpc.DialOption

	m     sync.Mutex
	conns map[string]*grpc.ClientConn
}

func NewTransport(timeout time.Duration, opts ...grpc.DialOption) *Transport {
	return &Transport{
		timeout:  timeout,
		dialOpts: opts,
		conns:    map[string]*grpc.ClientConn{},
	}
}

func (t *Transport) client(peer string) (FullNodeServiceClient, error) {
	t.m.Lock()
	defer t.m.Unlock()
	conn, ok := t.conns[peer]
	if !ok {
		var err error
		conn, err = Dial(peer, t.dialOpts...)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrPeerUnavailable, peer, err)
		}
		t.conns[peer] = conn
	}
	return NewFullNodeServiceClient(conn), nil
}

func (t *Transport) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.timeout)
}

func answer(peer string, err error) (Status, error) {
	s, ok := StatusFromError(err)
	if !ok {
		return s, fmt.Errorf("%w: %s: %v", ErrPeerUnavailable, peer, err)
	}
	return s, nil
}

// BroadcastTransaction relays tx to peer. A non nil error means the peer
// should be skipped.
func (t *Transport) BroadcastTransaction(ctx context.Context, peer string, tx *model.Transaction) (Status, error) {
	c, err := t.client(peer)
	if err != nil {
		return StatusRejected, err
	}
	ctx, cancel := t.callContext(ctx)
	defer cancel()
	_, err = c.BroadcastTransaction(ctx, &TransactionRequest{Tx: *tx})
	return answer(peer, err)
}

// BroadcastBlock announces b to peer. A non nil error means the peer should
// be skipped.
func (t *Transport) BroadcastBlock(ctx context.Context, peer string, b *model.Block) (Status, error) {
	c, err := t.client(peer)
	if err != nil {
		return StatusRejected, err
	}
	ctx, cancel := t.callContext(ctx)
	defer cancel()
	_, err = c.BroadcastBlock(ctx, &BlockRequest{Block: *b})
	return answer(peer, err)
}

func (t *Transport) FetchChain(ctx context.Context, peer string) ([]model.Block, error) {
	c, err := t.client(peer)
	if err != nil {
		return nil, err
	}
	ctx, cancel := t.callContext(ctx)
	defer cancel()
	res, err := c.GetChain(ctx, &GetChainRequest{})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPeerUnavailable, peer, err)
	}
	return res.Chain, nil
}

// Forget drops the cached connection to peer, if any.
func (t *Transport) Forget(peer string) {
	t.m.Lock()
	defer t.m.Unlock()
	if conn, ok := t.conns[peer]; ok {
		conn.Close()
		delete(t.conns, peer)
	}
}

func (t *Transport) Close() error {
	t.m.Lock()
	defer t.m.Unlock()
	var firstErr error
	for peer, conn := range t.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(t.conns, peer)
	}
	return firstErr
}
