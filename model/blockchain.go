package model

import (
	"fmt"

	"github.com/jinzhu/copier"
)

const (
	// Proof stored in the genesis block.
	GenesisProof = 100
	// Bootstrap timestamp of the genesis block.
	GenesisTimestamp = 0
)

type Block struct {
	// Position in the chain, genesis is 0.
	Index int64 `json:"index"`
	// Hex digest of the previous block. Empty for genesis only.
	PreviousHash string `json:"previous_hash"`
	// Transactions for this block. The last one is the reward transaction.
	Transactions []Transaction `json:"transactions"`
	// Proof of work found by the miner.
	Proof int64 `json:"proof"`
	// Unix seconds at which the block was created.
	Timestamp int64 `json:"timestamp"`
}

// NewGenesisBlock returns the fixed first block every chain starts with.
func NewGenesisBlock() Block {
	return Block{
		Index:        0,
		PreviousHash: "",
		Transactions: []Transaction{},
		Proof:        GenesisProof,
		Timestamp:    GenesisTimestamp,
	}
}

// PayloadTransactions returns every transaction except the trailing reward
// transaction, which is what the proof of work covers.
func (b *Block) PayloadTransactions() []Transaction {
	if len(b.Transactions) == 0 {
		return []Transaction{}
	}
	return b.Transactions[:len(b.Transactions)-1]
}

// Chain is an ordered list of blocks that always starts with genesis.
type Chain struct {
	Blocks []Block
}

// Create a new chain holding only the genesis block.
func NewChain() *Chain {
	return &Chain{
		Blocks: []Block{NewGenesisBlock()},
	}
}

// Append adds a block without checking it, callers validate first.
func (c *Chain) Append(b Block) {
	c.Blocks = append(c.Blocks, b)
}

func (c *Chain) Tip() *Block {
	return &c.Blocks[len(c.Blocks)-1]
}

func (c *Chain) Len() int {
	return len(c.Blocks)
}

// Replace swaps in another chain. An empty chain is ignored since a chain
// must always hold genesis.
func (c *Chain) Replace(blocks []Block) {
	if len(blocks) == 0 {
		return
	}
	c.Blocks = blocks
}

// Copy returns a deep copy of the blocks.
func (c *Chain) Copy() ([]Block, error) {
	blocks := make([]Block, 0, len(c.Blocks))
	if err := copier.CopyWithOption(&blocks, &c.Blocks, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("copy chain: %w", err)
	}
	return blocks, nil
}
