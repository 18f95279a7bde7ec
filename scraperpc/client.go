package scraperpc

import (
	"github.com/powerman/rpc-codec/jsonrpc2"
)

// Client calls a remote Server.
type Client struct {
	client *jsonrpc2.Client
}

// NewClient returns a client for the server at "http://host:port/".
func NewClient(url string) *Client {
	return &Client{client: jsonrpc2.NewHTTPClient(url)}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Scrape(args ScrapeRequest) (*ScrapeResponse, error) {
	var reply ScrapeResponse
	return &reply, c.client.Call("Scraper.Scrape", args, &reply)
}
