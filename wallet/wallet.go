package wallet

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/Luismorlan/powledger/network"
	"github.com/Luismorlan/powledger/utils"
	"google.golang.org/grpc"
)

var (
	ErrNotConnected     = errors.New("wallet is not connected to a full node")
	ErrInvalidRecipient = errors.New("recipient is not a valid public key")
)

// Deadline for a single call to the full node.
const requestTimeout = 10 * time.Second

// User signs and sends transactions to network.
type Wallet struct {
	keys   *rsa.PrivateKey
	conn   *grpc.ClientConn
	client network.FullNodeServiceClient
	logger *slog.Logger
}

func NewWallet(keys *rsa.PrivateKey, logger *slog.Logger) *Wallet {
	if logger == nil {
		logger = utils.NewLogger(nil)
	}
	return &Wallet{
		keys:   keys,
		logger: logger,
	}
}

// Hex encoded public key, the identity other users send money to.
func (w *Wallet) GetPublicKey() string {
	return utils.PublicKeyToHex(&w.keys.PublicKey)
}

// SetFullNodeConnection points the wallet to a full node, replacing the
// previous connection if any.
func (w *Wallet) SetFullNodeConnection(ipAddr string, port string, opts ...grpc.DialOption) error {
	conn, err := network.Dial(net.JoinHostPort(ipAddr, port), opts...)
	if err != nil {
		return err
	}
	if w.conn != nil {
		w.conn.Close()
	}
	w.conn = conn
	w.client = network.NewFullNodeServiceClient(conn)
	return nil
}

// Spendable balance of this wallet as seen by the connected full node.
func (w *Wallet) GetBalance(ctx context.Context) (float64, error) {
	if w.client == nil {
		return 0, ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	res, err := w.client.GetBalance(ctx, &network.GetBalanceRequest{Participant: w.GetPublicKey()})
	if err != nil {
		return 0, err
	}
	return res.Balance, nil
}

// TransferMoney signs a payment to receiverPK and submits it to the full
// node.
func (w *Wallet) TransferMoney(ctx context.Context, receiverPK string, value float64) error {
	if w.client == nil {
		return ErrNotConnected
	}
	if utils.HexToPublicKey(receiverPK) == nil {
		return ErrInvalidRecipient
	}
	if value <= 0 {
		return utils.ErrInvalidAmount
	}
	tx, err := CreateTransaction(w.keys, receiverPK, value)
	if err != nil {
		return fmt.Errorf("failed to create new transaction: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	if _, err := w.client.SubmitTransaction(ctx, &network.TransactionRequest{Tx: *tx}); err != nil {
		return fmt.Errorf("failed to send transaction to full node: %w", err)
	}
	return nil
}

func (w *Wallet) Log(msg string, args ...any) {
	w.logger.Info(msg, args...)
}

func (w *Wallet) Close() error {
	if w.conn == nil {
		return nil
	}
	return w.conn.Close()
}
