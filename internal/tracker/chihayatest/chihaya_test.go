package chihayatest

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/chihaya/chihaya/bittorrent"
	fhttp "github.com/chihaya/chihaya/frontend/http"
	"github.com/chihaya/chihaya/frontend/udp"
	"github.com/chihaya/chihaya/middleware"
	"github.com/chihaya/chihaya/pkg/stop"
	"github.com/chihaya/chihaya/storage"
	_ "github.com/chihaya/chihaya/storage/memory"
	"github.com/stretchr/testify/require"

	"github.com/cenkalti/trackerscrape/internal/errorlog"
	"github.com/cenkalti/trackerscrape/internal/infohash"
	"github.com/cenkalti/trackerscrape/internal/tracker"
	"github.com/cenkalti/trackerscrape/internal/tracker/httptracker"
	"github.com/cenkalti/trackerscrape/internal/tracker/udptracker"
)

const timeout = 2 * time.Second

var peerID = tracker.NewPeerID(tracker.DefaultPeerIDPrefix)

func mustHash(t *testing.T, s string) infohash.Hash {
	h, err := infohash.Parse(s)
	require.NoError(t, err)
	return h
}

// trackerLogic returns tracker logic with a single seeder for the seeded hash.
func trackerLogic(t *testing.T, seeded infohash.Hash) *middleware.Logic {
	ps, err := storage.NewPeerStore("memory", map[string]any{})
	require.NoError(t, err)
	seeder := bittorrent.Peer{
		ID:   bittorrent.PeerID{1},
		IP:   bittorrent.IP{IP: net.IPv4(127, 0, 0, 1).To4(), AddressFamily: bittorrent.IPv4},
		Port: 1111,
	}
	require.NoError(t, ps.PutSeeder(bittorrent.InfoHash(seeded.Bytes), seeder))
	return middleware.NewLogic(middleware.ResponseConfig{AnnounceInterval: time.Minute}, ps, nil, nil)
}

func stopFrontend(t *testing.T, fe stop.Stopper) {
	errC := fe.Stop()
	if errs := <-errC; len(errs) > 0 {
		t.Fatal(errs)
	}
}

func startUDPTracker(t *testing.T, port int, seeded infohash.Hash) func() {
	fe, err := udp.NewFrontend(trackerLogic(t, seeded), udp.Config{
		Addr:         "127.0.0.1:" + strconv.Itoa(port),
		MaxClockSkew: time.Minute,
		PrivateKey:   "M4YlzP02iB0B46P2i3QLyMOW6nWXnVlYeJ91xIdtu8Ao7IIVKLZEaCEshTChmFrS",
	})
	require.NoError(t, err)
	return func() { stopFrontend(t, fe) }
}

func startHTTPTracker(t *testing.T, port int, seeded infohash.Hash) func() {
	fe, err := fhttp.NewFrontend(trackerLogic(t, seeded), fhttp.Config{
		Addr:         "127.0.0.1:" + strconv.Itoa(port),
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	require.NoError(t, err)
	return func() { stopFrontend(t, fe) }
}

func udpClient() *udptracker.Client {
	return udptracker.New(udptracker.Config{Timeout: timeout, PeerID: peerID, Port: 2222})
}

func httpClient() *httptracker.Client {
	return httptracker.New(httptracker.Config{Timeout: timeout, PeerID: peerID, Port: 2222}, httptracker.NewTransport(nil))
}

func TestUDPTrackerScrape(t *testing.T) {
	seeded := mustHash(t, "0606060606060606060606060606060606060606")
	unknown := mustHash(t, "0707070707070707070707070707070707070707")
	defer startUDPTracker(t, 5000, seeded)()

	addr, err := tracker.ParseURL("udp://127.0.0.1:5000/announce")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	elog := errorlog.New(nil)
	records, err := udpClient().Scrape(ctx, addr, []infohash.Hash{seeded, unknown}, elog)
	require.NoError(t, err)
	require.Equal(t, tracker.Records{seeded.Bytes: {Seeders: 1}}, records)
	require.Equal(t, 1, elog.Len())
}

func TestUDPTrackerAnnounce(t *testing.T) {
	seeded := mustHash(t, "0808080808080808080808080808080808080808")
	defer startUDPTracker(t, 5001, seeded)()

	addr, err := tracker.ParseURL("udp://127.0.0.1:5001/announce")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	records, err := udpClient().Announce(ctx, addr, []infohash.Hash{seeded}, errorlog.New(nil))
	require.NoError(t, err)
	// The announcing client has nothing left to download, so chihaya counts it as a seeder too.
	require.Equal(t, tracker.Record{Seeders: 2}, records[seeded.Bytes])
}

func TestHTTPTrackerScrape(t *testing.T) {
	seeded := mustHash(t, "0909090909090909090909090909090909090909")
	defer startHTTPTracker(t, 5100, seeded)()

	addr, err := tracker.ParseURL("http://127.0.0.1:5100/announce")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	records, err := httpClient().Scrape(ctx, addr, []infohash.Hash{seeded}, errorlog.New(nil))
	require.NoError(t, err)
	require.Equal(t, uint32(1), records[seeded.Bytes].Seeders)
	require.Equal(t, uint32(0), records[seeded.Bytes].Leechers)
}

func TestHTTPTrackerAnnounce(t *testing.T) {
	seeded := mustHash(t, "0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a")
	defer startHTTPTracker(t, 5101, seeded)()

	addr, err := tracker.ParseURL("http://127.0.0.1:5101/announce")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	elog := errorlog.New(nil)
	records, err := httpClient().Announce(ctx, addr, []infohash.Hash{seeded}, elog)
	require.NoError(t, err)
	// chihaya writes dictionary keys in map order, so "complete" is not always the first key.
	// Such bodies are skipped and logged.
	if r, ok := records[seeded.Bytes]; ok {
		require.Equal(t, tracker.Record{Seeders: 2}, r)
		require.Zero(t, elog.Len())
	} else {
		require.Equal(t, 1, elog.Len())
		require.Contains(t, elog.Entries()[0], "unexpected response")
	}
}
