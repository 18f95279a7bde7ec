// Package httptracker gets swarm statistics from HTTP and HTTPS trackers.
package httptracker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/juju/ratelimit"

	"github.com/cenkalti/trackerscrape/internal/bencodescan"
	"github.com/cenkalti/trackerscrape/internal/blocklist"
	"github.com/cenkalti/trackerscrape/internal/errorlog"
	"github.com/cenkalti/trackerscrape/internal/infohash"
	"github.com/cenkalti/trackerscrape/internal/logger"
	"github.com/cenkalti/trackerscrape/internal/tracker"
)

var (
	scrapePreamble   = []byte("d5:filesd20:")
	announcePreamble = []byte("d8:completei")
	// Some trackers answer every announce with this, counting only the announcing peer.
	degenerateAnnounce = []byte("d8:completei0e10:downloadedi0e10:incompletei1e")
)

// DefaultMaxResponseLength is used when Config.MaxResponseLength is not set.
const DefaultMaxResponseLength = 2 << 20

// Client sends scrape and announce requests to HTTP trackers.
type Client struct {
	log               logger.Logger
	http              *http.Client
	userAgent         string
	maxResponseLength int64
	peerID            [20]byte
	port              uint16
	pacer             *ratelimit.Bucket
}

// Config of Client.
type Config struct {
	// Total time for a single request, including connect and reading the body.
	Timeout time.Duration
	// Sent as User-Agent header if not empty.
	UserAgent string
	// Response bodies are truncated to this many bytes. Zero means DefaultMaxResponseLength.
	MaxResponseLength int64
	// Sent in announce requests.
	PeerID [20]byte
	// Sent in announce requests.
	Port uint16
	// Limits the rate of announce requests. May be nil.
	Pacer *ratelimit.Bucket
}

// New returns a new Client that sends requests through t.
func New(cfg Config, t *http.Transport) *Client {
	if cfg.MaxResponseLength <= 0 {
		cfg.MaxResponseLength = DefaultMaxResponseLength
	}
	return &Client{
		log: logger.New("http tracker"),
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: t,
		},
		userAgent:         cfg.UserAgent,
		maxResponseLength: cfg.MaxResponseLength,
		peerID:            cfg.PeerID,
		port:              cfg.Port,
		pacer:             cfg.Pacer,
	}
}

// NewTransport returns a transport that resolves tracker hosts with tracker.ResolveHost,
// so addresses in bl are never dialed. bl may be nil.
// The transport has no timeouts of its own; connect and TLS handshake are bounded by
// Config.Timeout of each Client sharing it.
func NewTransport(bl *blocklist.Blocklist) *http.Transport {
	var dialer net.Dialer
	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ip, err := tracker.ResolveHost(ctx, host, bl)
			if err != nil {
				return nil, err
			}
			return dialer.DialContext(ctx, "tcp4", net.JoinHostPort(ip.String(), port))
		},
		DisableKeepAlives: true,
	}
}

// Scrape gets statistics of all hashes with a single scrape request.
// Hashes missing from the response are left out of the result and logged to elog.
// A returned error means that nothing can be used from this tracker.
func (c *Client) Scrape(ctx context.Context, addr tracker.Address, hashes []infohash.Hash, elog *errorlog.Log) (tracker.Records, error) {
	q := url.Values{}
	for _, h := range hashes {
		q.Add("info_hash", string(h.Bytes[:]))
	}
	body, err := c.get(ctx, addr.BaseURL()+"/scrape?"+q.Encode())
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(body, scrapePreamble) {
		return nil, unexpectedResponse(body)
	}
	result := make(tracker.Records, len(hashes))
	for _, h := range hashes {
		s, err := bencodescan.Extract(body, h.Bytes)
		if err != nil {
			elog.Addf("http tracker %s: %s: %s", addr, h, err)
			continue
		}
		result[h.Bytes] = recordOf(s)
	}
	return result, nil
}

// Announce sends an announce request with the "stopped" event for each hash and reads the counters from the responses.
// Unusable responses skip that hash only; request errors abort the whole call.
func (c *Client) Announce(ctx context.Context, addr tracker.Address, hashes []infohash.Hash, elog *errorlog.Log) (tracker.Records, error) {
	result := make(tracker.Records, len(hashes))
	for _, h := range hashes {
		if err := tracker.Pace(ctx, c.pacer); err != nil {
			return nil, err
		}
		body, err := c.get(ctx, addr.BaseURL()+"/announce?"+c.announceQuery(h).Encode())
		if err != nil {
			return nil, err
		}
		if !bytes.HasPrefix(body, announcePreamble) {
			elog.Addf("http tracker %s: announce %s: %s", addr, h, unexpectedResponse(body))
			continue
		}
		if bytes.HasPrefix(body, degenerateAnnounce) {
			elog.Addf("http tracker %s: announce %s: tracker reports only the announcing peer", addr, h)
			continue
		}
		// Give the body the same shape as a torrent entry in a scrape response.
		fragment := append(bencodescan.Marker(h.Bytes), body...)
		s, err := bencodescan.Extract(fragment, h.Bytes)
		if err != nil {
			elog.Addf("http tracker %s: announce %s: %s", addr, h, err)
			continue
		}
		result[h.Bytes] = recordOf(s)
	}
	return result, nil
}

func (c *Client) announceQuery(h infohash.Hash) url.Values {
	q := url.Values{}
	q.Set("info_hash", string(h.Bytes[:]))
	q.Set("peer_id", string(c.peerID[:]))
	q.Set("port", strconv.FormatUint(uint64(c.port), 10))
	q.Set("uploaded", "0")
	q.Set("downloaded", "0")
	q.Set("left", "0")
	q.Set("compact", "1")
	q.Set("event", "stopped")
	return q
}

func recordOf(s bencodescan.Stats) tracker.Record {
	return tracker.Record{
		Seeders:   s.Complete,
		Completed: s.Downloaded,
		Leechers:  s.Incomplete,
	}
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	c.log.Debugf("making request to: %q", u)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{
			Code:   resp.StatusCode,
			Header: resp.Header,
			Body:   string(data),
		}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseLength))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	c.log.Debugf("read %d bytes", len(body))
	return body, nil
}
