package scraper

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFile(t *testing.T) {
	c, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig, *c)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trackerscrape.yaml")
	data := `
timeout: 5s
max_trackers: 3
use_announce: true
trackers:
  - udp://tracker.example.org:6969/announce
  - https://tracker.example.net/announce
user_agent: custom/1.0
announce_rate: 2.5
rpc_port: 9000
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, c.Timeout)
	require.Equal(t, 3, c.MaxTrackers)
	require.True(t, c.UseAnnounce)
	require.Len(t, c.Trackers, 2)
	require.Equal(t, "custom/1.0", c.UserAgent)
	require.Equal(t, 2.5, c.AnnounceRate)
	require.Equal(t, 9000, c.RPCPort)
	// untouched fields keep their defaults
	require.Equal(t, DefaultConfig.PeerIDPrefix, c.PeerIDPrefix)
	require.Equal(t, DefaultConfig.RPCHost, c.RPCHost)
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeout: [1, 2"), 0o644))
	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestNewLoadsBlocklist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocklist")
	require.NoError(t, os.WriteFile(path, []byte("127.0.0.0/8\n"), 0o644))
	f := newFakeTracker(map[string]Record{hash1: {Seeders: 1}})
	defer f.Close()

	cfg := DefaultConfig
	cfg.Blocklist = path
	s, err := New(cfg)
	require.NoError(t, err)
	defer s.Close()

	res := s.Scrape(context.Background(), Request{Hashes: []string{hash1}, Trackers: []string{f.Announce()}})
	require.Zero(t, res.Records.Len())
	require.Empty(t, f.Requests())

	cfg.Blocklist = filepath.Join(t.TempDir(), "missing")
	_, err = New(cfg)
	require.Error(t, err)
}
