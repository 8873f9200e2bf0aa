package visualize

import (
	"bytes"
	"errors"
	"fmt"
	"io/ioutil"
	"os/exec"
	"path/filepath"

	"github.com/Luismorlan/powledger/model"
	"github.com/Luismorlan/powledger/utils"
	"github.com/bradleyjkemp/memviz"
)

// We re-define the visualize model here because public keys and hashes
// are far too long to render, and memviz draws every field it sees.
type transaction struct {
	sender    string
	recipient string
	amount    float64
}

type block struct {
	index    int64
	hash     string
	prevHash string
	proof    int64
	txs      []transaction
	reward   transaction
	next     *block
}

// The string of public key and hash is just too long to render, instead we take only first 3 and last 3
// characters and replace the middle part with '...'. E.g. "abcdefghi" will be rendered as "abc...ghi"
func shortenString(s string) string {
	if len(s) < 9 {
		return s
	}
	return fmt.Sprintf("%s...%s", s[0:3], s[len(s)-3:])
}

// PKIX encoded keys share a long common prefix, the middle of the key is
// what tells two keys apart.
func shortenPK(s string) string {
	if len(s) < 9 {
		return s
	}
	mid := len(s) / 2
	i := mid - 1
	j := mid + 2
	return fmt.Sprintf("...%s...", s[i:j])
}

func txToTx(tx *model.Transaction) transaction {
	sender := tx.Sender
	if !tx.IsReward() {
		sender = shortenPK(sender)
	}
	return transaction{
		sender:    sender,
		recipient: shortenPK(tx.Recipient),
		amount:    tx.Amount,
	}
}

func blockToBlock(b *model.Block) *block {
	n := &block{
		index:    b.Index,
		hash:     shortenString(utils.HashBlock(b)),
		prevHash: shortenString(b.PreviousHash),
		proof:    b.Proof,
	}
	payload := b.PayloadTransactions()
	for i := range payload {
		n.txs = append(n.txs, txToTx(&payload[i]))
	}
	if len(b.Transactions) > 0 {
		n.reward = txToTx(&b.Transactions[len(b.Transactions)-1])
	}
	return n
}

// Given a chain, link its last d blocks from oldest to tip.
func constructData(blocks []model.Block, d int) *block {
	start := len(blocks) - d
	if start < 0 {
		start = 0
	}
	var root, last *block
	for i := start; i < len(blocks); i++ {
		n := blockToBlock(&blocks[i])
		if root == nil {
			root = n
		} else {
			last.next = n
		}
		last = n
	}
	return root
}

// Dot returns the Graphviz description of the last d blocks, tip included.
func Dot(blocks []model.Block, d int) ([]byte, error) {
	if len(blocks) == 0 {
		return nil, errors.New("chain is empty")
	}
	if d < 1 {
		return nil, fmt.Errorf("invalid depth %d", d)
	}
	buf := &bytes.Buffer{}
	memviz.Map(buf, constructData(blocks, d))
	return buf.Bytes(), nil
}

// Entry to this package, where:
// blocks: the chain as tracked by full node.
// d: depth to return.
// id: unique id of the full node.
// dir: where to write the files.
// It writes a dot file, and a png next to it when graphviz is installed.
// The dot file path is returned.
func Render(blocks []model.Block, d int, id string, dir string) (string, error) {
	data, err := Dot(blocks, d)
	if err != nil {
		return "", err
	}

	// Write the parsed data to disk
	fileName := filepath.Join(dir, "chaindata-"+id+".dot")
	outputName := filepath.Join(dir, "rendered-chain-"+id+".png")
	if err := ioutil.WriteFile(fileName, data, 0644); err != nil {
		return "", err
	}

	if _, err := exec.LookPath("dot"); err == nil {
		exec.Command("dot", "-Tpng", fileName, "-o", outputName).Run()
	}
	return fileName, nil
}
