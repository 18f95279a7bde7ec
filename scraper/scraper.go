// Package scraper gets seeder, leecher and download counts of torrents from BitTorrent trackers.
//
// Trackers are tried in the given order. Hashes that a tracker cannot answer are passed to the next one
// until every hash is resolved or the trackers run out.
package scraper

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/juju/ratelimit"
	"github.com/rcrowley/go-metrics"

	"github.com/cenkalti/trackerscrape/internal/blocklist"
	"github.com/cenkalti/trackerscrape/internal/errorlog"
	"github.com/cenkalti/trackerscrape/internal/infohash"
	"github.com/cenkalti/trackerscrape/internal/logger"
	"github.com/cenkalti/trackerscrape/internal/tracker"
	"github.com/cenkalti/trackerscrape/internal/tracker/httptracker"
	"github.com/cenkalti/trackerscrape/internal/tracker/udptracker"
)

// Scraper queries trackers. It keeps no state between Scrape calls and is safe for concurrent use.
type Scraper struct {
	config    Config
	log       logger.Logger
	peerID    [20]byte
	blocklist *blocklist.Blocklist
	transport *http.Transport
	pacer     *ratelimit.Bucket
	metrics   *scraperMetrics
}

// Request is the input of a Scrape call.
type Request struct {
	// 40 character hex encoded info hashes. Between 1 and 64 valid hashes must be given.
	Hashes []string
	// Tracker URLs with udp, http or https scheme, tried in order. Config.Trackers is used if empty.
	Trackers []string
	// Max number of valid trackers to try. Zero means Config.MaxTrackers.
	MaxTrackers int
	// Timeout for each tracker. Zero means Config.Timeout.
	Timeout time.Duration
	// Send one announce request per hash instead of a single scrape request.
	UseAnnounce bool
}

// New returns a new Scraper. The blocklist file in cfg is loaded once here.
func New(cfg Config) (*Scraper, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig.Timeout
	}
	l := logger.New("scraper")
	bl := blocklist.NewLogger(l.Errorf)
	if cfg.Blocklist != "" {
		n, err := bl.LoadFile(cfg.Blocklist)
		if err != nil {
			return nil, err
		}
		l.Infof("loaded %d rules from blocklist", n)
	}
	return &Scraper{
		config:    cfg,
		log:       l,
		peerID:    tracker.NewPeerID(cfg.PeerIDPrefix),
		blocklist: bl,
		transport: httptracker.NewTransport(bl),
		pacer:     tracker.NewPacer(cfg.AnnounceRate),
		metrics:   newMetrics(),
	}, nil
}

// Metrics returns the registry holding the counters of all calls made with s.
func (s *Scraper) Metrics() metrics.Registry {
	return s.metrics.registry
}

// Close releases idle HTTP connections and stops the metrics.
func (s *Scraper) Close() {
	s.transport.CloseIdleConnections()
	s.metrics.Close()
}

// call is the state of a single Scrape call.
type call struct {
	*Scraper
	ctx         context.Context
	timeout     time.Duration
	useAnnounce bool
	pending     []infohash.Hash
	result      *Result
	errors      *errorlog.Log
}

// Scrape resolves as many of the requested hashes as possible.
// It never fails. Whatever went wrong is reported with Result.Errors.
func (s *Scraper) Scrape(ctx context.Context, req Request) *Result {
	elog := errorlog.New(s.log)
	result := &Result{Records: NewResultMap(), errors: elog}

	hashes, errs := infohash.Normalize(req.Hashes)
	for _, err := range errs {
		elog.Add(err)
	}
	if len(hashes) == 0 {
		return result
	}

	trackers := req.Trackers
	if len(trackers) == 0 {
		trackers = s.config.Trackers
	}
	maxTrackers := req.MaxTrackers
	if maxTrackers <= 0 {
		maxTrackers = s.config.MaxTrackers
	}
	if maxTrackers <= 0 {
		maxTrackers = len(trackers)
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.config.Timeout
	}

	c := &call{
		Scraper:     s,
		ctx:         ctx,
		timeout:     timeout,
		useAnnounce: req.UseAnnounce,
		pending:     hashes,
		result:      result,
		errors:      elog,
	}
	if len(trackers) == 0 {
		elog.Add("no trackers given")
	}
	c.run(trackers, maxTrackers)
	s.metrics.HashesResolved.Inc(int64(len(hashes) - len(c.pending)))
	s.metrics.HashesUnresolved.Inc(int64(len(c.pending)))
	for _, h := range c.pending {
		elog.Addf("info hash %s could not be resolved by any tracker", h)
	}
	return result
}

func (c *call) run(trackers []string, maxTrackers int) {
	var attempts int
	for _, rawURL := range trackers {
		if attempts >= maxTrackers || len(c.pending) == 0 {
			return
		}
		if err := c.ctx.Err(); err != nil {
			c.errors.Addf("stopped before tracker %s: %s", rawURL, err)
			return
		}
		addr, err := tracker.ParseURL(rawURL)
		if errors.Is(err, tracker.ErrUnsupportedScheme) {
			c.metrics.TrackersSkipped.Inc(1)
			c.errors.Addf("skipping tracker: %s", err)
			continue
		}
		if err != nil {
			c.metrics.TrackersSkipped.Inc(1)
			c.errors.Addf("skipping invalid tracker: %s", err)
			continue
		}
		attempts++
		c.attempt(addr)
	}
}

// attempt hands all pending hashes to the tracker at addr.
// Hashes in the returned records are moved to the result, the rest stay pending.
// On error every hash stays pending.
func (c *call) attempt(addr tracker.Address) {
	c.metrics.TrackersAttempted.Inc(1)
	c.log.Debugf("trying %s with %d hashes", addr, len(c.pending))
	start := time.Now()
	records, err := c.query(addr, c.pending)
	c.metrics.TrackerDuration.UpdateSince(start)
	if err != nil {
		c.metrics.TrackersFailed.Inc(1)
		c.errors.Addf("tracker %s failed: %s", addr, err)
		return
	}
	remaining := make([]infohash.Hash, 0, len(c.pending))
	for _, h := range c.pending {
		r, ok := records[h.Bytes]
		if !ok {
			remaining = append(remaining, h)
			continue
		}
		c.result.Records.set(h, r)
	}
	c.log.Debugf("%s resolved %d of %d hashes", addr, len(c.pending)-len(remaining), len(c.pending))
	c.pending = remaining
}

func (c *call) query(addr tracker.Address, hashes []infohash.Hash) (tracker.Records, error) {
	switch addr.Scheme {
	case tracker.SchemeUDP:
		t := udptracker.New(udptracker.Config{
			Timeout:   c.timeout,
			PeerID:    c.peerID,
			Port:      c.config.Port,
			Blocklist: c.blocklist,
			Pacer:     c.pacer,
		})
		if c.useAnnounce {
			return t.Announce(c.ctx, addr, hashes, c.errors)
		}
		return t.Scrape(c.ctx, addr, hashes, c.errors)
	case tracker.SchemeHTTP, tracker.SchemeHTTPS:
		t := httptracker.New(httptracker.Config{
			Timeout:           c.timeout,
			UserAgent:         c.config.UserAgent,
			MaxResponseLength: c.config.MaxResponseLength,
			PeerID:            c.peerID,
			Port:              c.config.Port,
			Pacer:             c.pacer,
		}, c.transport)
		if c.useAnnounce {
			return t.Announce(c.ctx, addr, hashes, c.errors)
		}
		return t.Scrape(c.ctx, addr, hashes, c.errors)
	default:
		return nil, tracker.ErrUnsupportedScheme
	}
}
