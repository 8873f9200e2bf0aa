package utils

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/Luismorlan/powledger/commands"
	"github.com/Luismorlan/powledger/model"
)

// Field order of these mirrors is part of the digest, do not reorder.
type hashableTransaction struct {
	Sender    string  `json:"sender"`
	Recipient string  `json:"recipient"`
	Signature string  `json:"signature"`
	Amount    float64 `json:"amount"`
}

type hashableBlock struct {
	Index        int64                 `json:"index"`
	PreviousHash string                `json:"previous_hash"`
	Transactions []hashableTransaction `json:"transactions"`
	Proof        int64                 `json:"proof"`
	Timestamp    int64                 `json:"timestamp"`
}

// GetBlockBytes serializes a block deterministically. A nil and an empty
// transaction list serialize the same way.
func GetBlockBytes(block *model.Block) []byte {
	hb := hashableBlock{
		Index:        block.Index,
		PreviousHash: block.PreviousHash,
		Transactions: make([]hashableTransaction, len(block.Transactions)),
		Proof:        block.Proof,
		Timestamp:    block.Timestamp,
	}
	for i, tx := range block.Transactions {
		hb.Transactions[i] = hashableTransaction(tx)
	}
	// Marshalling plain structs of strings and numbers cannot fail.
	data, _ := json.Marshal(hb)
	return data
}

// HashBlock is the hex digest that links the next block to this one.
func HashBlock(block *model.Block) string {
	return BytesToHex(SHA256(GetBlockBytes(block)))
}

// TipHash is the digest of the last block of the chain.
func TipHash(blocks []model.Block) string {
	if len(blocks) == 0 {
		return ""
	}
	return HashBlock(&blocks[len(blocks)-1])
}

// GetProofBytes is the puzzle input: signable content of the transactions,
// then the previous hash, then the guess.
func GetProofBytes(txs []model.Transaction, lastHash string, proof int64) []byte {
	data := GetTransactionsSignableBytes(txs)
	data = append(data, lastHash...)
	data = append(data, Int64ToBytes(proof)...)
	return data
}

func MatchDifficulty(digest string, difficulty int) bool {
	return strings.HasPrefix(digest, strings.Repeat("0", difficulty))
}

// ValidProof checks a candidate proof. txs must be the same list used while
// mining, i.e. without the reward transaction.
func ValidProof(txs []model.Transaction, lastHash string, proof int64, difficulty int) bool {
	digest := BytesToHex(SHA256(GetProofBytes(txs, lastHash, proof)))
	return MatchDifficulty(digest, difficulty)
}

// Mine searches proofs from 0 upward until one satisfies the difficulty.
// ctl is polled between guesses, any command received stops the search and
// is returned to the caller.
func Mine(txs []model.Transaction, lastHash string, difficulty int, ctl <-chan commands.Command) (int64, commands.Command, error) {
	prefix := GetTransactionsSignableBytes(txs)
	prefix = append(prefix, lastHash...)
	buf := make([]byte, 0, len(prefix)+20)
	for proof := int64(0); proof >= 0; proof++ {
		select {
		case c := <-ctl:
			return 0, c, errors.New("mining interrupted")
		default:
		}
		buf = append(buf[:0], prefix...)
		buf = append(buf, Int64ToBytes(proof)...)
		if MatchDifficulty(BytesToHex(SHA256(buf)), difficulty) {
			return proof, commands.NewDefaultCommand(), nil
		}
	}
	return 0, commands.NewDefaultCommand(), errors.New("failed to find any proof")
}

// VerifyChain checks index order, hash linkage and the proof of every block
// after genesis.
func VerifyChain(blocks []model.Block, difficulty int) bool {
	if len(blocks) == 0 {
		return false
	}
	for i := 1; i < len(blocks); i++ {
		if err := ValidateNextBlock(&blocks[i-1], &blocks[i], difficulty); err != nil {
			return false
		}
	}
	return true
}

var (
	ErrBlockIndex    = errors.New("block index does not follow previous block")
	ErrBlockLinkage  = errors.New("previous hash does not match")
	ErrBlockProof    = errors.New("proof of work is invalid")
	ErrMissingReward = errors.New("block has no reward transaction")
)

// ValidateNextBlock checks that next may directly follow prev.
func ValidateNextBlock(prev *model.Block, next *model.Block, difficulty int) error {
	if next.Index != prev.Index+1 {
		return ErrBlockIndex
	}
	if len(next.Transactions) == 0 {
		return ErrMissingReward
	}
	if next.PreviousHash != HashBlock(prev) {
		return ErrBlockLinkage
	}
	if !ValidProof(next.PayloadTransactions(), next.PreviousHash, next.Proof, difficulty) {
		return ErrBlockProof
	}
	return nil
}

// ResolveLongestChain applies the longest valid chain rule. Candidates are
// examined in the given order and a candidate only wins when it is strictly
// longer than the current winner, so among several longer valid chains the
// last one examined that still beats the running winner is kept.
func ResolveLongestChain(local []model.Block, candidates [][]model.Block, difficulty int) ([]model.Block, bool) {
	winner := local
	replaced := false
	for _, c := range candidates {
		if len(c) > len(winner) && VerifyChain(c, difficulty) {
			winner = c
			replaced = true
		}
	}
	return winner, replaced
}
