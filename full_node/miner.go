package full_node

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Luismorlan/powledger/commands"
	"github.com/Luismorlan/powledger/model"
)

var ErrMinerBusy = errors.New("mining has already been started")

// Outcome of a single mining round.
type MineResult struct {
	Block *model.Block
	Err   error
}

// Miner runs mining rounds on its own goroutine so that the node keeps
// serving requests while the proof search is in progress.
type Miner struct {
	node *FullNode
	// Interrupts the running round. Buffered so that senders never wait on
	// the proof search.
	ctl chan commands.Command

	m       sync.Mutex
	running bool
	// Closed when the mining loop exits.
	done chan struct{}
}

func NewMiner(node *FullNode) *Miner {
	return &Miner{
		node: node,
		ctl:  make(chan commands.Command, 1),
	}
}

func (mi *Miner) IsRunning() bool {
	mi.m.Lock()
	defer mi.m.Unlock()
	return mi.running
}

// Start mining blocks one after another until Stop. Returns false if
// already running.
func (mi *Miner) Start(ctx context.Context) bool {
	mi.m.Lock()
	defer mi.m.Unlock()
	if mi.running {
		return false
	}
	mi.running = true
	mi.done = make(chan struct{})
	go mi.loop(ctx, mi.done)
	return true
}

func (mi *Miner) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	logger := mi.node.logger
	for {
		if mi.node.NeedsResolution() {
			mi.node.ResolveConflicts(ctx)
		}
		_, c, err := mi.node.MineBlock(ctx, mi.ctl)
		if err == nil {
			continue
		}
		switch c.Op {
		case commands.STOP:
			logger.Info("mining stopped")
			return
		case commands.RESTART:
			logger.Info("mining restarted")
			continue
		}
		logger.Warn("mining round failed", "error", err)
		select {
		case c := <-mi.ctl:
			if c.Op == commands.STOP {
				logger.Info("mining stopped")
				return
			}
		case <-time.After(mi.node.config.RetryInterval()):
		}
	}
}

// Stop the mining loop and wait for it to exit. Returns false if it was not
// running.
func (mi *Miner) Stop() bool {
	mi.m.Lock()
	if !mi.running {
		mi.m.Unlock()
		return false
	}
	mi.running = false
	done := mi.done
	mi.m.Unlock()

	mi.ctl <- commands.Command{Op: commands.STOP}
	<-done
	return true
}

// Restart drops the running round and starts over on the current tip. A
// no-op when not running.
func (mi *Miner) Restart() bool {
	if !mi.IsRunning() {
		return false
	}
	select {
	case mi.ctl <- commands.Command{Op: commands.RESTART}:
	default:
		// An interrupt is already pending.
	}
	return true
}

// MineAsync mines a single block in the background. Cancelling ctx abandons
// the round.
func (mi *Miner) MineAsync(ctx context.Context) <-chan MineResult {
	res := make(chan MineResult, 1)
	if mi.IsRunning() {
		res <- MineResult{Err: ErrMinerBusy}
		return res
	}
	ctl := make(chan commands.Command, 1)
	go func() {
		finished := make(chan struct{})
		defer close(finished)
		go func() {
			select {
			case <-ctx.Done():
				ctl <- commands.Command{Op: commands.STOP}
			case <-finished:
			}
		}()
		if mi.node.NeedsResolution() {
			mi.node.ResolveConflicts(ctx)
		}
		b, _, err := mi.node.MineBlock(ctx, ctl)
		res <- MineResult{Block: b, Err: err}
	}()
	return res
}
