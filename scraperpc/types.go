// Package scraperpc provides a JSON-RPC 2.0 server and client for running scrapes on a remote host.
package scraperpc

// HashStats is the result for a single info hash.
type HashStats struct {
	InfoHash  string
	Seeders   uint32
	Completed uint32
	Leechers  uint32
}

type ScrapeRequest struct {
	Hashes         []string
	Trackers       []string
	MaxTrackers    int
	TimeoutSeconds float64
	UseAnnounce    bool
}

type ScrapeResponse struct {
	// In resolution order.
	Results []HashStats
	Errors  []string
}
