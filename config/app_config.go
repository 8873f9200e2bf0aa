package config

import (
	"errors"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"time"

	uuid "github.com/satori/go.uuid"
	"gopkg.in/yaml.v2"
)

const (
	SnapshotBackendFile    = "file"
	SnapshotBackendLevelDB = "leveldb"
)

// This is the global app config for the ledger node.
type AppConfig struct {
	// How many leading hex 0s form a valid proof.
	DIFFICULTY int
	// Amount credited to the miner of every block.
	MINING_REWARD float64
	// Identifies the node, used to name its snapshot. Derived from PORT when
	// empty.
	NODE_ID string
	// TCP port the node serves peers and wallets on.
	PORT string
	// Peers to start with, as "host:port".
	PEERS []string
	// PEM file holding the node's private key. Empty means observer node.
	KEY_PATH string
	// Either "file" or "leveldb".
	SNAPSHOT_BACKEND string
	// Directory holding the snapshot.
	SNAPSHOT_DIR string
	// Upper bound for a single call to a peer.
	PEER_TIMEOUT_SECONDS int
	// Restart the running mining round when a peer block changes the tail.
	REMINE_ON_TAIL_CHANGE bool
	// Pause between mining rounds that failed.
	RETRY_INTERVAL_MS int
}

// Default returns the configuration used when no file is provided.
func Default() AppConfig {
	return AppConfig{
		DIFFICULTY:            2,
		MINING_REWARD:         10,
		PORT:                  "5000",
		SNAPSHOT_BACKEND:      SnapshotBackendFile,
		SNAPSHOT_DIR:          ".",
		PEER_TIMEOUT_SECONDS:  10,
		REMINE_ON_TAIL_CHANGE: true,
		RETRY_INTERVAL_MS:     1000,
	}
}

// Load reads a yaml file on top of the defaults.
func Load(path string) (AppConfig, error) {
	c := Default()
	yamlFile, err := ioutil.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(yamlFile, &c); err != nil {
		return c, fmt.Errorf("parse config %s: %w", path, err)
	}
	return c, c.Validate()
}

func (c AppConfig) Validate() error {
	// A sha256 digest has 64 hex characters.
	if c.DIFFICULTY < 0 || c.DIFFICULTY > 64 {
		return fmt.Errorf("difficulty %d out of range [0, 64]", c.DIFFICULTY)
	}
	if c.MINING_REWARD < 0 {
		return errors.New("mining reward must not be negative")
	}
	if c.PORT == "" {
		return errors.New("port is missing")
	}
	switch c.SNAPSHOT_BACKEND {
	case SnapshotBackendFile, SnapshotBackendLevelDB:
	default:
		return fmt.Errorf("unknown snapshot backend %q", c.SNAPSHOT_BACKEND)
	}
	if c.PEER_TIMEOUT_SECONDS <= 0 {
		return errors.New("peer timeout must be positive")
	}
	return nil
}

func (c AppConfig) PeerTimeout() time.Duration {
	return time.Duration(c.PEER_TIMEOUT_SECONDS) * time.Second
}

func (c AppConfig) RetryInterval() time.Duration {
	return time.Duration(c.RETRY_INTERVAL_MS) * time.Millisecond
}

// NodeID is NODE_ID, or a name based uuid of the port when unset. The same
// port always yields the same id, so a restarted node finds its snapshot.
func (c AppConfig) NodeID() string {
	if c.NODE_ID != "" {
		return c.NODE_ID
	}
	return uuid.NewV5(uuid.NamespaceOID, "powledger:"+c.PORT).String()
}

// SnapshotPath is where the configured backend keeps this node's state.
func (c AppConfig) SnapshotPath() string {
	if c.SNAPSHOT_BACKEND == SnapshotBackendLevelDB {
		return filepath.Join(c.SNAPSHOT_DIR, "blockchain-"+c.NodeID()+".db")
	}
	return filepath.Join(c.SNAPSHOT_DIR, "blockchain-"+c.NodeID()+".txt")
}
