package uevent

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_FilterDevnodeDefaultsToAccept(t *testing.T) {
	cfg := &Config{}
	assert.True(t, cfg.filterDevnode("sda"))
}

func TestConfig_FilterDevnodeDenylist(t *testing.T) {
	cfg := &Config{DevnodeRules: []DevnodeRule{
		{Pattern: "loop*", Deny: true},
		{Pattern: "sda", Deny: false},
	}}
	assert.False(t, cfg.filterDevnode("loop0"))
	assert.True(t, cfg.filterDevnode("sda"))
	assert.True(t, cfg.filterDevnode("sdb")) // no matching rule, default accept
}

func TestConfig_UIDAttributeKey(t *testing.T) {
	cfg := &Config{UIDRules: []UIDRule{
		{KernelPattern: "sd*", EnvKey: "ID_SERIAL"},
	}}
	key, ok := cfg.uidAttributeKey("sda")
	require.True(t, ok)
	assert.Equal(t, "ID_SERIAL", key)

	_, ok = cfg.uidAttributeKey("dm-0")
	assert.False(t, ok)
}

func TestConfig_MergingEnabled(t *testing.T) {
	assert.False(t, (&Config{}).MergingEnabled())
	assert.True(t, (&Config{UIDRules: []UIDRule{{KernelPattern: "sd*", EnvKey: "x"}}}).MergingEnabled())
}

func TestNewConfigStore_LoadsAndReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	initial := "uid_rules:\n  - kernel_pattern: \"sd*\"\n    env_key: \"ID_SERIAL\"\n"
	require.NoError(t, os.WriteFile(path, []byte(initial), 0644))

	store, err := NewConfigStore(path, true)
	require.NoError(t, err)
	defer store.Close()

	cfg, release := store.Acquire()
	assert.True(t, cfg.MergingEnabled())
	release()

	updated := "uid_rules: []\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0644))

	require.Eventually(t, func() bool {
		cfg, release := store.Acquire()
		defer release()
		return !cfg.MergingEnabled()
	}, 2*time.Second, 20*time.Millisecond)
}

func TestNewConfigStore_EmptyPathYieldsEmptyConfig(t *testing.T) {
	store, err := NewConfigStore("", false)
	require.NoError(t, err)
	defer store.Close()

	cfg, release := store.Acquire()
	defer release()
	assert.False(t, cfg.MergingEnabled())
}
