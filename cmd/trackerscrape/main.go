package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/log"
	"github.com/rcrowley/go-metrics"
	"github.com/urfave/cli"

	"github.com/cenkalti/trackerscrape/internal/jsonutil"
	"github.com/cenkalti/trackerscrape/internal/logger"
	"github.com/cenkalti/trackerscrape/scraper"
	"github.com/cenkalti/trackerscrape/scraperpc"
)

const defaultConfig = "~/.trackerscrape.yaml"

var errNothingResolved = errors.New("no info hash could be resolved")

func main() {
	app := cli.NewApp()
	app.Name = "trackerscrape"
	app.Usage = "Get seeder and leecher counts of torrents from BitTorrent trackers"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config,c",
			Usage: "read config from `FILE`",
			Value: defaultConfig,
		},
		cli.BoolFlag{
			Name:  "debug,d",
			Usage: "enable debug log",
		},
	}
	app.Before = handleBeforeCommand
	app.Commands = []cli.Command{
		{
			Name:   "scrape",
			Usage:  "query trackers for info hashes",
			Flags:  scrapeFlags,
			Action: handleScrape,
		},
		{
			Name:   "server",
			Usage:  "run rpc server",
			Action: handleServer,
		},
		{
			Name:  "client",
			Usage: "send rpc request to server",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "url",
					Usage: "URL of RPC server",
					Value: "http://127.0.0.1:7247/",
				},
			},
			Subcommands: []cli.Command{
				{
					Name:   "scrape",
					Usage:  "query trackers on the server",
					Flags:  scrapeFlags,
					Action: handleClientScrape,
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var scrapeFlags = []cli.Flag{
	cli.StringSliceFlag{
		Name:  "tracker,t",
		Usage: "tracker `URL`, can be given multiple times; defaults to trackers in config",
	},
	cli.IntFlag{
		Name:  "max-trackers",
		Usage: "max number of valid trackers to try, 0 for all",
	},
	cli.Float64Flag{
		Name:  "timeout",
		Usage: "per tracker timeout in seconds, 0 for config value",
	},
	cli.BoolFlag{
		Name:  "announce",
		Usage: "send announce requests instead of scrape requests",
	},
	cli.BoolFlag{
		Name:  "metrics",
		Usage: "print metrics to stderr when done",
	},
}

var cfg *scraper.Config

func handleBeforeCommand(c *cli.Context) error {
	if c.GlobalBool("debug") {
		logger.SetLevel(log.DEBUG)
	}
	var err error
	cfg, err = scraper.LoadConfig(c.GlobalString("config"))
	if err != nil {
		return err
	}
	if fi, err := os.Stdout.Stat(); err == nil && fi.Mode()&os.ModeCharDevice == 0 {
		jsonutil.DisableColor()
	}
	return nil
}

func timeoutFlag(c *cli.Context) time.Duration {
	return time.Duration(c.Float64("timeout") * float64(time.Second))
}

func handleScrape(c *cli.Context) error {
	s, err := scraper.New(*cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res := s.Scrape(ctx, scraper.Request{
		Hashes:      c.Args(),
		Trackers:    c.StringSlice("tracker"),
		MaxTrackers: c.Int("max-trackers"),
		Timeout:     timeoutFlag(c),
		UseAnnounce: c.Bool("announce") || cfg.UseAnnounce,
	})
	var stats []scraperpc.HashStats
	res.Records.Each(func(hash string, r scraper.Record) {
		stats = append(stats, scraperpc.HashStats{InfoHash: hash, Seeders: r.Seeders, Completed: r.Completed, Leechers: r.Leechers})
	})
	if c.Bool("metrics") {
		defer metrics.WriteOnce(s.Metrics(), os.Stderr)
	}
	// The error log has already been written to stderr by the logger.
	return printResults(stats, nil)
}

func handleServer(c *cli.Context) error {
	s, err := scraper.New(*cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	srv, err := scraperpc.NewServer(s)
	if err != nil {
		return err
	}
	if err = srv.Start(cfg.RPCHost, cfg.RPCPort); err != nil {
		return err
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	signal.Stop(ch)

	return srv.Stop(10 * time.Second)
}

func handleClientScrape(c *cli.Context) error {
	clt := scraperpc.NewClient(c.Parent().String("url"))
	defer clt.Close()

	resp, err := clt.Scrape(scraperpc.ScrapeRequest{
		Hashes:         c.Args(),
		Trackers:       c.StringSlice("tracker"),
		MaxTrackers:    c.Int("max-trackers"),
		TimeoutSeconds: c.Float64("timeout"),
		UseAnnounce:    c.Bool("announce"),
	})
	if err != nil {
		return err
	}
	return printResults(resp.Results, resp.Errors)
}

func printResults(stats []scraperpc.HashStats, errs []string) error {
	for _, e := range errs {
		fmt.Fprintln(os.Stderr, e)
	}
	for _, s := range stats {
		b, err := jsonutil.MarshalLine(s)
		if err != nil {
			return err
		}
		_, _ = os.Stdout.Write(b)
	}
	if len(stats) == 0 {
		return errNothingResolved
	}
	return nil
}
