package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/Luismorlan/powledger/commands"
	"github.com/Luismorlan/powledger/layout"
	"github.com/Luismorlan/powledger/utils"
	"github.com/Luismorlan/powledger/wallet"
	"github.com/jroimartin/gocui"
	"gopkg.in/urfave/cli.v1"
)

var (
	keyPathFlag = cli.StringFlag{
		Name:  "key_path",
		Value: "/tmp/mykey.pem",
		Usage: "RSA file path for your private key",
	}
	newKeyFlag = cli.BoolFlag{
		Name:  "new_key",
		Usage: "generate a new key at key_path even if one exists",
	}
	debugModeFlag = cli.BoolFlag{
		Name:  "debug_mode",
		Usage: "Using debug mode will disable fancy GUI.",
	}
	manualFlag = cli.StringFlag{
		Name:  "manual",
		Value: "wallet/cmd/usage.txt",
		Usage: "usage text shown in the GUI",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "wallet"
	app.Usage = "sign and send transactions to a full node"
	app.Flags = []cli.Flag{keyPathFlag, newKeyFlag, debugModeFlag, manualFlag}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	path := ctx.String(keyPathFlag.Name)
	_, statErr := os.Stat(path)
	keys, err := utils.ParseKeyFile(path, ctx.Bool(newKeyFlag.Name) || os.IsNotExist(statErr))
	if err != nil {
		return err
	}

	cmd := make(chan commands.ClientCommand)
	logger := utils.NewLogger(nil)
	var g *gocui.Gui
	if !ctx.Bool(debugModeFlag.Name) {
		manual, err := layout.ReadManual(ctx.String(manualFlag.Name))
		if err != nil {
			return err
		}
		g, err = layout.CreateGui(func(line string) error {
			c, err := commands.CreateClientCommand(line)
			if err != nil {
				return err
			}
			go func() { cmd <- c }()
			return nil
		}, manual)
		if err != nil {
			return err
		}
		defer g.Close()
		logger = utils.NewLogger(layout.NewViewWriter(g, layout.LoggerView))
	}

	w := wallet.NewWallet(keys, logger)
	defer w.Close()
	w.Log("Wallet public key: " + w.GetPublicKey())

	go HandleCommand(cmd, w)

	if g == nil {
		ParseCommand(cmd, logger)
		return nil
	}
	if err := g.MainLoop(); err != nil && !errors.Is(err, gocui.ErrQuit) {
		return err
	}
	return nil
}

// Parse command from stdio until EOF.
func ParseCommand(cmd chan<- commands.ClientCommand, logger *slog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		text := strings.TrimSpace(scanner.Text())
		c, err := commands.CreateClientCommand(text)
		if err != nil {
			logger.Warn(err.Error(), "input", text)
			continue
		}
		cmd <- c
	}
}

func HandleCommand(cmd <-chan commands.ClientCommand, w *wallet.Wallet) {
	for c := range cmd {
		switch c.Op {
		case commands.TRANSFER:
			receiverPK := c.Args[0]
			value, _ := strconv.ParseFloat(c.Args[1], 64)
			err := w.TransferMoney(context.Background(), receiverPK, value)
			if err != nil {
				w.Log("fail to transfer money: " + err.Error())
				continue
			}
			w.Log(fmt.Sprintf("successfully send transaction to fullnode, value: %f", value), "receiver", receiverPK)
		case commands.MY_PK:
			w.Log("\n===============DO NOT COPY THIS LINE================\n" + w.GetPublicKey() + "\n===============DO NOT COPY THIS LINE================")
		case commands.CONNECT:
			ipAddr := c.Args[0]
			port := c.Args[1]
			err := w.SetFullNodeConnection(ipAddr, port)
			if err != nil {
				w.Log("failed to connect to full node endpoint " + ipAddr + ":" + port)
				continue
			}
			w.Log("connected full node endpoint " + ipAddr + ":" + port)
		case commands.GET_BALANCE:
			v, err := w.GetBalance(context.Background())
			if err != nil {
				w.Log("fail to get balance: " + err.Error())
				continue
			}
			w.Log(fmt.Sprintf("your total balance is: %f", v))
		default:
			w.Log(fmt.Sprintf("Unimplemented command: %d", c.Op))
		}
	}
}
