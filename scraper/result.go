package scraper

import (
	"bytes"
	"encoding/json"

	"github.com/cenkalti/trackerscrape/internal/errorlog"
	"github.com/cenkalti/trackerscrape/internal/infohash"
	"github.com/cenkalti/trackerscrape/internal/tracker"
)

// Record holds the swarm counters of a torrent.
type Record = tracker.Record

// ResultMap maps info hashes to their counters in the order they were resolved.
// Keys are the hex strings as given by the caller.
type ResultMap struct {
	keys    []infohash.Hash
	records map[[infohash.Size]byte]Record
}

// NewResultMap returns an empty ResultMap.
func NewResultMap() *ResultMap {
	return &ResultMap{
		records: make(map[[infohash.Size]byte]Record),
	}
}

// set adds the record of h. The first resolution of a hash wins.
func (m *ResultMap) set(h infohash.Hash, r Record) {
	if _, ok := m.records[h.Bytes]; ok {
		return
	}
	m.keys = append(m.keys, h)
	m.records[h.Bytes] = r
}

// Get returns the record of a hex encoded info hash. Lookup is case-insensitive.
func (m *ResultMap) Get(hash string) (Record, bool) {
	h, err := infohash.Parse(hash)
	if err != nil {
		return Record{}, false
	}
	r, ok := m.records[h.Bytes]
	return r, ok
}

// Len returns the number of resolved hashes.
func (m *ResultMap) Len() int { return len(m.keys) }

// Keys returns the resolved hashes in resolution order.
func (m *ResultMap) Keys() []string {
	out := make([]string, len(m.keys))
	for i, h := range m.keys {
		out[i] = h.Text
	}
	return out
}

// Each calls fn for every resolved hash in resolution order.
func (m *ResultMap) Each(fn func(hash string, r Record)) {
	for _, h := range m.keys {
		fn(h.Text, m.records[h.Bytes])
	}
}

// MarshalJSON encodes the map as a JSON object keeping resolution order.
func (m *ResultMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, h := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(h.Text)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m.records[h.Bytes])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Result of a Scrape call.
type Result struct {
	// Records of the hashes that could be resolved.
	Records *ResultMap
	errors  *errorlog.Log
}

// HasErrors returns true if anything was logged during the call.
func (r *Result) HasErrors() bool { return r.errors.HasErrors() }

// Errors returns the messages logged during the call in order.
func (r *Result) Errors() []string { return r.errors.Entries() }
