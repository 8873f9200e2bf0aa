package utils

import (
	"encoding/json"
	"errors"
	"math"

	"github.com/Luismorlan/powledger/model"
)

// SignatureVerifier checks that a transaction was signed by its sender.
type SignatureVerifier interface {
	Verify(tx *model.Transaction) bool
}

var (
	ErrInvalidAmount     = errors.New("amount must be a non-negative number")
	ErrInvalidSignature  = errors.New("transaction signature is invalid")
	ErrInsufficientFunds = errors.New("sender has insufficient funds")
)

// The signed part of a transaction, in this order.
type signableTransaction struct {
	Sender    string  `json:"sender"`
	Recipient string  `json:"recipient"`
	Amount    float64 `json:"amount"`
}

func toSignable(tx *model.Transaction) signableTransaction {
	return signableTransaction{
		Sender:    tx.Sender,
		Recipient: tx.Recipient,
		Amount:    tx.Amount,
	}
}

// GetTransactionSignableBytes is what the sender signs. The signature
// itself is excluded.
func GetTransactionSignableBytes(tx *model.Transaction) []byte {
	data, _ := json.Marshal(toSignable(tx))
	return data
}

// GetTransactionsSignableBytes serializes the signable content of a list of
// transactions, keeping their order.
func GetTransactionsSignableBytes(txs []model.Transaction) []byte {
	signable := make([]signableTransaction, len(txs))
	for i := range txs {
		signable[i] = toSignable(&txs[i])
	}
	data, _ := json.Marshal(signable)
	return data
}

// VerifyTransaction admits a transaction when its amount is sane, the
// signature checks out and, if checkFunds is set, the sender can afford it.
// getBalance is only consulted for funds checks.
func VerifyTransaction(tx *model.Transaction, getBalance func(string) float64, verifier SignatureVerifier, checkFunds bool) error {
	if tx.Amount < 0 || math.IsNaN(tx.Amount) || math.IsInf(tx.Amount, 0) {
		return ErrInvalidAmount
	}
	if checkFunds && getBalance(tx.Sender) < tx.Amount {
		return ErrInsufficientFunds
	}
	if verifier == nil || !verifier.Verify(tx) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyTransactions checks every signature, ignoring funds.
func VerifyTransactions(txs []model.Transaction, verifier SignatureVerifier) bool {
	for i := range txs {
		if err := VerifyTransaction(&txs[i], nil, verifier, false); err != nil {
			return false
		}
	}
	return true
}
