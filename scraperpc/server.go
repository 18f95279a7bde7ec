package scraperpc

import (
	"context"
	"net"
	"net/http"
	"net/rpc"
	"strconv"
	"time"

	"github.com/powerman/rpc-codec/jsonrpc2"
	"github.com/rcrowley/go-metrics"

	"github.com/cenkalti/trackerscrape/internal/logger"
	"github.com/cenkalti/trackerscrape/scraper"
)

// Server exposes a Scraper over JSON-RPC 2.0 on HTTP.
type Server struct {
	scraper    *scraper.Scraper
	listener   net.Listener
	httpServer http.Server
	log        logger.Logger

	// Canceled by Stop. Running scrapes are derived from it.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer returns a server that runs scrapes with s.
func NewServer(s *scraper.Scraper) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())
	h := &handler{ctx: ctx, scraper: s}
	srv := rpc.NewServer()
	if err := srv.RegisterName("Scraper", h); err != nil {
		cancel()
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WriteOnce(s.Metrics(), w)
	})
	mux.Handle("/", jsonrpc2.HTTPHandler(srv))

	return &Server{
		scraper: s,
		httpServer: http.Server{
			Handler: mux,
		},
		log:    logger.New("rpc server"),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start listens on host:port and serves requests in a new goroutine.
func (s *Server) Start(host string, port int) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = listener

	s.log.Infoln("RPC server is listening on", listener.Addr().String())

	go func() {
		err := s.httpServer.Serve(listener)
		if err == http.ErrServerClosed {
			return
		}
		s.log.Fatal(err)
	}()

	return nil
}

// Addr returns the listening address. It is valid after Start returns successfully.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Stop cancels running scrapes and waits for their replies to be sent for at most timeout.
func (s *Server) Stop(timeout time.Duration) error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

type handler struct {
	ctx     context.Context
	scraper *scraper.Scraper
}

func (h *handler) Scrape(args *ScrapeRequest, reply *ScrapeResponse) error {
	res := h.scraper.Scrape(h.ctx, scraper.Request{
		Hashes:      args.Hashes,
		Trackers:    args.Trackers,
		MaxTrackers: args.MaxTrackers,
		Timeout:     time.Duration(args.TimeoutSeconds * float64(time.Second)),
		UseAnnounce: args.UseAnnounce,
	})
	reply.Results = make([]HashStats, 0, res.Records.Len())
	res.Records.Each(func(hash string, r scraper.Record) {
		reply.Results = append(reply.Results, HashStats{
			InfoHash:  hash,
			Seeders:   r.Seeders,
			Completed: r.Completed,
			Leechers:  r.Leechers,
		})
	})
	reply.Errors = res.Errors()
	return nil
}
