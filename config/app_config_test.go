package config

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, 2, c.DIFFICULTY)
	assert.Equal(t, 10.0, c.MINING_REWARD)
	assert.NotEmpty(t, c.NodeID())
	assert.NoError(t, c.Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
difficulty: 3
mining_reward: 25
node_id: node-a
port: "6001"
peers:
  - localhost:6002
  - localhost:6003
snapshot_backend: leveldb
snapshot_dir: /tmp/ledger
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, c.DIFFICULTY)
	assert.Equal(t, 25.0, c.MINING_REWARD)
	assert.Equal(t, "node-a", c.NODE_ID)
	assert.Equal(t, "6001", c.PORT)
	assert.Equal(t, []string{"localhost:6002", "localhost:6003"}, c.PEERS)
	assert.Equal(t, "/tmp/ledger/blockchain-node-a.db", c.SnapshotPath())
	// Unset values keep their defaults.
	assert.Equal(t, 10, c.PEER_TIMEOUT_SECONDS)
}

func TestLoadDerivesNodeIDFromPort(t *testing.T) {
	c, err := Load(writeConfig(t, "node_id: \"\"\nport: \"5001\"\n"))
	require.NoError(t, err)
	assert.NotEmpty(t, c.NodeID())
	assert.Equal(t, filepath.Join(".", "blockchain-"+c.NodeID()+".txt"), c.SnapshotPath())

	other, err := Load(writeConfig(t, "port: \"5002\"\n"))
	require.NoError(t, err)
	assert.NotEqual(t, c.SnapshotPath(), other.SnapshotPath())
}

func TestSnapshotPathStableAcrossStarts(t *testing.T) {
	first, err := Load("../full_node/cmd/config.yaml")
	require.NoError(t, err)
	second, err := Load("../full_node/cmd/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, first.SnapshotPath(), second.SnapshotPath())

	assert.Equal(t, Default().SnapshotPath(), Default().SnapshotPath())
}

func TestLoadRejectsInvalid(t *testing.T) {
	_, err := Load(writeConfig(t, "difficulty: 65\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "snapshot_backend: s3\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "mining_reward: -1\n"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
