package scraper

import (
	"os"
	"time"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v2"

	"github.com/cenkalti/trackerscrape/internal/tracker"
	"github.com/cenkalti/trackerscrape/internal/tracker/httptracker"
)

// Config for Scraper.
type Config struct {
	// Read, write and request timeout used for each tracker when Request.Timeout is zero.
	Timeout time.Duration `yaml:"timeout"`
	// Number of valid trackers tried when Request.MaxTrackers is zero. Zero means all of them.
	MaxTrackers int `yaml:"max_trackers"`
	// Send one announce request per hash instead of a single scrape request.
	// Used by the command line client only; library callers set Request.UseAnnounce.
	UseAnnounce bool `yaml:"use_announce"`
	// Trackers tried when Request.Trackers is empty.
	Trackers []string `yaml:"trackers"`
	// First bytes of the peer id sent in announce requests. The rest is random.
	PeerIDPrefix string `yaml:"peer_id_prefix"`
	// Port sent in announce requests. Nothing listens on it.
	Port uint16 `yaml:"port"`
	// User-Agent header for HTTP trackers.
	UserAgent string `yaml:"user_agent"`
	// HTTP response bodies are truncated to this many bytes.
	MaxResponseLength int64 `yaml:"max_response_length"`
	// Max announce requests per second. Zero disables the limit.
	AnnounceRate float64 `yaml:"announce_rate"`
	// Path of a file with CIDR rules. Trackers resolving to a blocked address are not contacted.
	Blocklist string `yaml:"blocklist"`
	// Host to listen for RPC server.
	RPCHost string `yaml:"rpc_host"`
	// Listen port for RPC server.
	RPCPort int `yaml:"rpc_port"`
}

// DefaultConfig for Scraper.
var DefaultConfig = Config{
	Timeout:           2 * time.Second,
	PeerIDPrefix:      tracker.DefaultPeerIDPrefix,
	Port:              6881,
	UserAgent:         "trackerscrape/1.0",
	MaxResponseLength: httptracker.DefaultMaxResponseLength,
	RPCHost:           "127.0.0.1",
	RPCPort:           7247,
}

// LoadConfig reads a YAML config file on top of DefaultConfig.
// A leading "~" in filename is expanded. A missing file is not an error.
func LoadConfig(filename string) (*Config, error) {
	c := DefaultConfig
	filename, err := homedir.Expand(filename)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return &c, nil
	}
	if err != nil {
		return nil, err
	}
	if err = yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
