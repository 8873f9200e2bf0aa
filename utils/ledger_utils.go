package utils

import "github.com/Luismorlan/powledger/model"

// GetBalance returns what participant may still spend: everything received
// in confirmed blocks minus everything sent in confirmed blocks and in the
// pending pool. Pending incoming funds are not spendable yet, pending
// outgoing ones are already committed.
func GetBalance(participant string, chain []model.Block, pool []model.Transaction) float64 {
	var received, sent float64
	for i := range chain {
		for _, tx := range chain[i].Transactions {
			if tx.Recipient == participant {
				received += tx.Amount
			}
			if tx.Sender == participant {
				sent += tx.Amount
			}
		}
	}
	for _, tx := range pool {
		if tx.Sender == participant {
			sent += tx.Amount
		}
	}
	return received - sent
}
