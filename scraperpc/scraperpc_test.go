package scraperpc

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cenkalti/trackerscrape/internal/infohash"
	"github.com/cenkalti/trackerscrape/scraper"
)

const hash = "0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a"

func startServer(t *testing.T) (*Server, *scraper.Scraper) {
	s, err := scraper.New(scraper.DefaultConfig)
	require.NoError(t, err)
	srv, err := NewServer(s)
	require.NoError(t, err)
	require.NoError(t, srv.Start("127.0.0.1", 0))
	t.Cleanup(func() {
		require.NoError(t, srv.Stop(time.Second))
		s.Close()
	})
	return srv, s
}

func TestScrape(t *testing.T) {
	h, err := infohash.Parse(hash)
	require.NoError(t, err)
	var body bytes.Buffer
	body.WriteString("d5:filesd20:")
	body.Write(h.Bytes[:])
	body.WriteString("d8:completei4e10:downloadedi8e10:incompletei1eeee")
	trk := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body.Bytes())
	}))
	defer trk.Close()

	srv, _ := startServer(t)
	clt := NewClient("http://" + srv.Addr().String() + "/")
	defer clt.Close()

	resp, err := clt.Scrape(ScrapeRequest{
		Hashes:         []string{hash, "bad"},
		Trackers:       []string{trk.URL + "/announce"},
		TimeoutSeconds: 1,
	})
	require.NoError(t, err)
	require.Equal(t, []HashStats{{InfoHash: hash, Seeders: 4, Completed: 8, Leechers: 1}}, resp.Results)
	require.Len(t, resp.Errors, 1)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := startServer(t)
	resp, err := http.Get("http://" + srv.Addr().String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(b), "trackers_attempted")
}

func TestStopCancelsRunningScrape(t *testing.T) {
	received := make(chan struct{})
	release := make(chan struct{})
	trk := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(received)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer trk.Close()
	defer close(release)

	s, err := scraper.New(scraper.DefaultConfig)
	require.NoError(t, err)
	defer s.Close()
	srv, err := NewServer(s)
	require.NoError(t, err)
	require.NoError(t, srv.Start("127.0.0.1", 0))

	clt := NewClient("http://" + srv.Addr().String() + "/")
	defer clt.Close()

	type reply struct {
		resp *ScrapeResponse
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		resp, err := clt.Scrape(ScrapeRequest{
			Hashes:         []string{hash},
			Trackers:       []string{trk.URL + "/announce"},
			TimeoutSeconds: 30,
		})
		done <- reply{resp, err}
	}()

	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("tracker was not queried")
	}
	require.NoError(t, srv.Stop(5*time.Second))

	r := <-done
	require.NoError(t, r.err)
	require.Empty(t, r.resp.Results)
	require.NotEmpty(t, r.resp.Errors)
}
