package main

import (
	"bufio"
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"

	"github.com/Luismorlan/powledger/commands"
	"github.com/Luismorlan/powledger/config"
	"github.com/Luismorlan/powledger/full_node"
	"github.com/Luismorlan/powledger/layout"
	"github.com/Luismorlan/powledger/network"
	"github.com/Luismorlan/powledger/snapshot"
	"github.com/Luismorlan/powledger/utils"
	"github.com/Luismorlan/powledger/wallet"
	"github.com/jroimartin/gocui"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"gopkg.in/urfave/cli.v1"
)

var (
	configFlag = cli.StringFlag{
		Name:  "config_path",
		Usage: "path to full node yaml config",
	}
	nodeIDFlag = cli.StringFlag{
		Name:  "node_id",
		Usage: "name of the node's snapshot, derived from the port when unset",
	}
	portFlag = cli.StringFlag{
		Name:  "port",
		Usage: "port to listen to peers and wallets",
	}
	peerFlag = cli.StringSliceFlag{
		Name:  "peer",
		Usage: "peer address as host:port, can be repeated",
	}
	keyPathFlag = cli.StringFlag{
		Name:  "key_path",
		Usage: "RSA file path for the node's private key, mining rewards go to it",
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
		Value: "full_node/cmd/usage.txt",
		Usage: "usage text shown in the GUI",
	}
)

var errQuit = errors.New("quit")

func main() {
	app := cli.NewApp()
	app.Name = "full_node"
	app.Usage = "proof of work ledger full node"
	app.Flags = []cli.Flag{configFlag, nodeIDFlag, portFlag, peerFlag, keyPathFlag, newKeyFlag, debugModeFlag, manualFlag}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Config file first, then flags on top.
func makeConfig(ctx *cli.Context) (config.AppConfig, error) {
	cfg := config.Default()
	if path := ctx.String(configFlag.Name); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}
	if ctx.IsSet(portFlag.Name) {
		cfg.PORT = ctx.String(portFlag.Name)
	}
	if ctx.IsSet(nodeIDFlag.Name) {
		cfg.NODE_ID = ctx.String(nodeIDFlag.Name)
	}
	if ctx.IsSet(keyPathFlag.Name) {
		cfg.KEY_PATH = ctx.String(keyPathFlag.Name)
	}
	cfg.PEERS = append(cfg.PEERS, ctx.StringSlice(peerFlag.Name)...)
	return cfg, cfg.Validate()
}

// Load the node key, creating it on first start.
func loadKey(path string, forceNew bool) (*rsa.PrivateKey, error) {
	if path == "" {
		return nil, nil
	}
	_, err := os.Stat(path)
	return utils.ParseKeyFile(path, forceNew || os.IsNotExist(err))
}

func openSnapshotStore(cfg config.AppConfig) (snapshot.Store, error) {
	if cfg.SNAPSHOT_BACKEND == config.SnapshotBackendLevelDB {
		return snapshot.NewLevelDBStore(cfg.SnapshotPath())
	}
	return snapshot.NewFileStore(cfg.SnapshotPath()), nil
}

// Parse command from stdio.
func ParseCommand(ctx context.Context, cmd chan<- commands.Command, logger *slog.Logger) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return errQuit
		}
		text := strings.TrimSpace(scanner.Text())
		c, err := commands.CreateCommand(text)
		if err != nil {
			logger.Warn(err.Error(), "input", text)
			continue
		}
		select {
		case cmd <- c:
		case <-ctx.Done():
			return nil
		}
	}
}

// HandleCommand executes console commands one at a time.
func HandleCommand(ctx context.Context, cmd <-chan commands.Command, server *full_node.FullNodeServer, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-cmd:
			out, err := server.HandleCommand(ctx, c)
			if err != nil {
				logger.Warn(err.Error())
				continue
			}
			logger.Info(out)
		}
	}
}

func run(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	keys, err := loadKey(cfg.KEY_PATH, ctx.Bool(newKeyFlag.Name))
	if err != nil {
		return err
	}
	store, err := openSnapshotStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	lis, err := net.Listen("tcp", ":"+cfg.PORT)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	eg, egCtx := errgroup.WithContext(context.Background())
	// A command channel that takes console input and hands it to the
	// command handler.
	cmd := make(chan commands.Command)

	var g *gocui.Gui
	logger := utils.NewLogger(nil)
	if !ctx.Bool(debugModeFlag.Name) {
		manual, err := layout.ReadManual(ctx.String(manualFlag.Name))
		if err != nil {
			return err
		}
		g, err = layout.CreateGui(func(line string) error {
			c, err := commands.CreateCommand(line)
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

	transport := network.NewTransport(cfg.PeerTimeout())
	defer transport.Close()
	opts := []full_node.Option{
		full_node.WithTransport(transport),
		full_node.WithSnapshotStore(store),
		full_node.WithLogger(logger),
	}
	if keys != nil {
		opts = append(opts, full_node.WithIdentity(keys))
	}
	node := full_node.NewFullNode(cfg, wallet.Verifier{}, opts...)
	miner := full_node.NewMiner(node)
	server := full_node.NewFullNodeServer(node, miner)

	grpcServer := grpc.NewServer()
	network.RegisterFullNodeServiceServer(grpcServer, server)
	logger.Info("starting to serve", "port", cfg.PORT, "node", cfg.NodeID(), "public_key", node.PublicKey())

	eg.Go(func() error {
		return grpcServer.Serve(lis)
	})
	eg.Go(func() error {
		return HandleCommand(egCtx, cmd, server, logger)
	})
	eg.Go(func() error {
		if g == nil {
			return ParseCommand(egCtx, cmd, logger)
		}
		if err := g.MainLoop(); err != nil && err != gocui.ErrQuit {
			return err
		}
		return errQuit
	})
	eg.Go(func() error {
		<-egCtx.Done()
		miner.Stop()
		grpcServer.GracefulStop()
		return nil
	})

	if err := eg.Wait(); err != nil && err != errQuit {
		return err
	}
	return nil
}
