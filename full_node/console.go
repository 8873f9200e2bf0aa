package full_node

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Luismorlan/powledger/commands"
	"github.com/olekukonko/tablewriter"
)

var ErrNoMiner = errors.New("this server has no miner")

// HandleCommand runs one console command and returns the text to show the
// operator. Mining commands never block on the proof search.
func (sev *FullNodeServer) HandleCommand(ctx context.Context, c commands.Command) (string, error) {
	node := sev.fullNode
	switch c.Op {
	case commands.START:
		if sev.miner == nil {
			return "", ErrNoMiner
		}
		if !sev.miner.Start(ctx) {
			return "", ErrMinerBusy
		}
		return "mining started", nil
	case commands.RESTART, commands.STOP:
		if sev.miner == nil {
			return "", ErrNoMiner
		}
		if !sev.miner.IsRunning() {
			return "", errors.New("no running mining task to be restart or shut")
		}
		if c.Op == commands.RESTART {
			sev.miner.Restart()
			return "mining restarted", nil
		}
		// Relay the signal in a separate goroutine because stopping waits
		// for the current round and we don't want to block the console.
		go sev.miner.Stop()
		return "stopping mining", nil
	case commands.MINE:
		if sev.miner == nil {
			return "", ErrNoMiner
		}
		res := sev.miner.MineAsync(ctx)
		go func() {
			r := <-res
			if r.Err != nil {
				node.logger.Warn("mining failed", "error", r.Err)
			}
		}()
		return "mining a block in the background", nil
	case commands.ADD_PEER:
		if !node.AddPeer(c.Address()) {
			return "", fmt.Errorf("peer %s already exist", c.Address())
		}
		return "added peer " + c.Address(), nil
	case commands.REMOVE_PEER:
		node.RemovePeer(c.Address())
		return "removed peer " + c.Address(), nil
	case commands.LIST_PEER:
		peers := node.Peers()
		if len(peers) == 0 {
			return "no peers", nil
		}
		return strings.Join(peers, "\n"), nil
	case commands.RESOLVE:
		if node.ResolveConflicts(ctx) {
			return fmt.Sprintf("chain replaced, height %d", node.Height()), nil
		}
		return "local chain is authoritative", nil
	case commands.BALANCE:
		participant := node.PublicKey()
		if len(c.Args) == 1 {
			participant = c.Args[0]
		}
		if participant == "" {
			return "", ErrNoIdentity
		}
		return fmt.Sprintf("balance: %f", node.Balance(participant)), nil
	case commands.PENDING:
		txs := node.PendingTransactions()
		buf := &bytes.Buffer{}
		fmt.Fprintf(buf, "%d pending transactions\n", len(txs))
		if len(txs) > 0 {
			table := tablewriter.NewWriter(buf)
			table.SetHeader([]string{"sender", "recipient", "amount"})
			for _, tx := range txs {
				table.Append([]string{shorten(tx.Sender), shorten(tx.Recipient), strconv.FormatFloat(tx.Amount, 'f', -1, 64)})
			}
			table.Render()
		}
		return strings.TrimRight(buf.String(), "\n"), nil
	case commands.STATUS:
		mining := sev.miner != nil && sev.miner.IsRunning()
		return fmt.Sprintf("height: %d, pending: %d, peers: %d, needs resolution: %t, mining: %t",
			node.Height(), len(node.PendingTransactions()), len(node.Peers()), node.NeedsResolution(), mining), nil
	case commands.SHOW:
		d, err := strconv.Atoi(c.Args[0])
		if err != nil {
			return "", fmt.Errorf("%s is not a valid number for depth", c.Args[0])
		}
		path, err := sev.Show(d, node.config.SNAPSHOT_DIR)
		if err != nil {
			return "", err
		}
		return "chain rendered to " + path, nil
	}
	return "", fmt.Errorf("unrecognized command: %d", c.Op)
}

func shorten(s string) string {
	if len(s) <= 16 {
		return s
	}
	return s[len(s)-16:]
}
