package wallet

import (
	"crypto/rsa"

	"github.com/Luismorlan/powledger/model"
	"github.com/Luismorlan/powledger/utils"
)

// Verifier accepts a transaction only if its signature was made by the key
// its sender field names.
type Verifier struct{}

func (Verifier) Verify(tx *model.Transaction) bool {
	pk := utils.HexToPublicKey(tx.Sender)
	if pk == nil {
		return false
	}
	sig, err := utils.HexToBytes(tx.Signature)
	if err != nil || len(sig) == 0 {
		return false
	}
	return utils.Verify(utils.GetTransactionSignableBytes(tx), pk, sig)
}

// SignTransaction fills in the signature of tx. The sender must be the
// identity of sk.
func SignTransaction(tx *model.Transaction, sk *rsa.PrivateKey) error {
	sig, err := utils.Sign(utils.GetTransactionSignableBytes(tx), sk)
	if err != nil {
		return err
	}
	tx.Signature = utils.BytesToHex(sig)
	return nil
}

// Create a signed transaction paying amount from the owner of sk.
func CreateTransaction(sk *rsa.PrivateKey, recipient string, amount float64) (*model.Transaction, error) {
	tx := &model.Transaction{
		Sender:    utils.PublicKeyToHex(&sk.PublicKey),
		Recipient: recipient,
		Amount:    amount,
	}
	if err := SignTransaction(tx, sk); err != nil {
		return nil, err
	}
	return tx, nil
}
