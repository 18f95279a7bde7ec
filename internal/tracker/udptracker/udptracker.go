// Package udptracker gets swarm statistics from trackers speaking the UDP tracker protocol.
package udptracker

// http://bittorrent.org/beps/bep_0015.html
// http://xbtt.sourceforge.net/udp_tracker_protocol.html

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/juju/ratelimit"

	"github.com/cenkalti/trackerscrape/internal/blocklist"
	"github.com/cenkalti/trackerscrape/internal/errorlog"
	"github.com/cenkalti/trackerscrape/internal/infohash"
	"github.com/cenkalti/trackerscrape/internal/logger"
	"github.com/cenkalti/trackerscrape/internal/tracker"
)

// Read buffer is big enough for a scrape response of a full batch.
const maxResponseSize = headerSize + scrapeRecordSize*infohash.MaxBatch

// Client talks to UDP trackers. A Client holds no per-call state and can be shared.
type Client struct {
	timeout   time.Duration
	peerID    [20]byte
	port      uint16
	blocklist *blocklist.Blocklist
	pacer     *ratelimit.Bucket
}

// Config of Client.
type Config struct {
	// Read and write timeout for each packet.
	Timeout time.Duration
	// Sent in announce requests.
	PeerID [20]byte
	// Sent in announce requests.
	Port uint16
	// Tracker addresses in this list are not contacted. May be nil.
	Blocklist *blocklist.Blocklist
	// Limits the rate of announce requests. May be nil.
	Pacer *ratelimit.Bucket
}

// New returns a new Client.
func New(cfg Config) *Client {
	return &Client{
		timeout:   cfg.Timeout,
		peerID:    cfg.PeerID,
		port:      cfg.Port,
		blocklist: cfg.Blocklist,
		pacer:     cfg.Pacer,
	}
}

// session is a connected socket and the connection id given by the tracker.
type session struct {
	conn         *net.UDPConn
	timeout      time.Duration
	connectionID int64
	log          logger.Logger
	buf          []byte
}

// open resolves the tracker, dials it and completes the connect handshake.
// The returned session must be closed by the caller.
func (c *Client) open(ctx context.Context, addr tracker.Address) (*session, error) {
	ip, err := tracker.ResolveHost(ctx, addr.Host, c.blocklist)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr.Host, err)
	}
	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: ip, Port: addr.Port})
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	s := &session{
		conn:    conn,
		timeout: c.timeout,
		log:     logger.New("udp tracker " + addr.HostPort()),
		buf:     make([]byte, maxResponseSize+1),
	}
	if err = s.connect(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) Close() error {
	return s.conn.Close()
}

func (s *session) connect(ctx context.Context) error {
	req := newConnectRequest(newTransactionID())
	b, err := exchange(ctx, s.conn, s.timeout, req, s.buf)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	s.connectionID, err = parseConnectResponse(b, req.TransactionID)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	s.log.Debugf("connected, connection id: %d", s.connectionID)
	return nil
}

// Scrape gets statistics of all hashes with a single scrape request.
// Hashes for which the tracker has no data (zero seeders) are left out of the result and logged to elog.
// A returned error means that nothing can be used from this tracker.
func (c *Client) Scrape(ctx context.Context, addr tracker.Address, hashes []infohash.Hash, elog *errorlog.Log) (tracker.Records, error) {
	s, err := c.open(ctx, addr)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	req := &scrapeRequest{InfoHashes: make([][20]byte, len(hashes))}
	req.ConnectionID = s.connectionID
	req.Action = actionScrape
	req.TransactionID = newTransactionID()
	for i, h := range hashes {
		req.InfoHashes[i] = h.Bytes
	}
	b, err := exchange(ctx, s.conn, s.timeout, req, s.buf)
	if err != nil {
		return nil, fmt.Errorf("scrape: %w", err)
	}
	records, err := parseScrapeResponse(b, req.TransactionID, len(hashes))
	if err != nil {
		return nil, fmt.Errorf("scrape: %w", err)
	}

	result := make(tracker.Records, len(hashes))
	for i, r := range records {
		if r.Seeders == 0 {
			elog.Addf("udp tracker %s has no data for %s", addr, hashes[i])
			continue
		}
		result[hashes[i].Bytes] = tracker.Record{
			Seeders:   r.Seeders,
			Completed: r.Completed,
			Leechers:  r.Leechers,
		}
	}
	return result, nil
}

// Announce sends an announce request with the "stopped" event for each hash and reads the
// seeder and leecher counts from the responses. Completed count is not available in announce responses.
// An invalid response skips that hash only; socket errors abort the whole call.
func (c *Client) Announce(ctx context.Context, addr tracker.Address, hashes []infohash.Hash, elog *errorlog.Log) (tracker.Records, error) {
	s, err := c.open(ctx, addr)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	result := make(tracker.Records, len(hashes))
	for _, h := range hashes {
		if err = tracker.Pace(ctx, c.pacer); err != nil {
			return nil, err
		}
		req := &announceRequest{
			InfoHash: h.Bytes,
			PeerID:   c.peerID,
			Event:    eventStopped,
			Key:      rand.Uint32(), // nolint: gosec
			NumWant:  -1,
			Port:     c.port,
		}
		req.ConnectionID = s.connectionID
		req.Action = actionAnnounce
		req.TransactionID = newTransactionID()

		b, err := exchange(ctx, s.conn, s.timeout, req, s.buf)
		if err != nil {
			return nil, fmt.Errorf("announce: %w", err)
		}
		resp, err := parseAnnounceResponse(b, req.TransactionID)
		if err != nil {
			elog.Addf("udp tracker %s announce %s: %s", addr, h, err)
			continue
		}
		s.log.Debugf("announce response for %s: %#v", h, resp)
		result[h.Bytes] = tracker.Record{
			Seeders:  uint32(resp.Seeders),
			Leechers: uint32(resp.Leechers),
		}
	}
	return result, nil
}
