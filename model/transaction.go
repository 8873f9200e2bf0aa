package model

import (
	"fmt"

	"github.com/jinzhu/copier"
)

// Sender used by reward transactions minted by a miner.
const MiningSender = "MINING"

type Transaction struct {
	// Hex encoded public key of the payer.
	Sender string `json:"sender"`
	// Hex encoded public key of the payee.
	Recipient string `json:"recipient"`
	// Hex encoded signature over (sender, recipient, amount).
	Signature string `json:"signature"`
	// How much value to transfer. Never negative.
	Amount float64 `json:"amount"`
}

// Create the reward transaction credited to the miner of a block.
func NewRewardTransaction(miner string, reward float64) Transaction {
	return Transaction{
		Sender:    MiningSender,
		Recipient: miner,
		Signature: "",
		Amount:    reward,
	}
}

// IsReward reports whether the transaction was minted by a miner.
func (t *Transaction) IsReward() bool {
	return t.Sender == MiningSender
}

// Matches compares every field. Transactions carry no identifier, so two
// submissions with identical fields cannot be told apart.
func (t *Transaction) Matches(o *Transaction) bool {
	return t.Sender == o.Sender &&
		t.Recipient == o.Recipient &&
		t.Amount == o.Amount &&
		t.Signature == o.Signature
}

type TransactionPool struct {
	// Pending transactions that haven't been confirmed in any block yet, in
	// insertion order. Mining picks them up in this order.
	Txs []Transaction
}

// NewTransactionPool creates a new transaction pool with no transaction at all.
func NewTransactionPool() *TransactionPool {
	return &TransactionPool{
		Txs: []Transaction{},
	}
}

func (p *TransactionPool) Add(tx Transaction) {
	p.Txs = append(p.Txs, tx)
}

// RemoveMatching removes the first transaction equal to tx. Missing
// transactions are ignored.
func (p *TransactionPool) RemoveMatching(tx *Transaction) bool {
	for i := range p.Txs {
		if p.Txs[i].Matches(tx) {
			p.Txs = append(p.Txs[:i], p.Txs[i+1:]...)
			return true
		}
	}
	return false
}

func (p *TransactionPool) Clear() {
	p.Txs = []Transaction{}
}

func (p *TransactionPool) Len() int {
	return len(p.Txs)
}

// List returns a copy of the pending transactions, safe to hand out.
func (p *TransactionPool) List() ([]Transaction, error) {
	txs := make([]Transaction, 0, len(p.Txs))
	if err := copier.Copy(&txs, &p.Txs); err != nil {
		return nil, fmt.Errorf("copy transaction pool: %w", err)
	}
	return txs, nil
}
