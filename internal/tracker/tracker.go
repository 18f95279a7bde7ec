// Package tracker contains the types shared by the UDP and HTTP tracker clients.
package tracker

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Scheme is the protocol used to talk to a tracker.
type Scheme int

// Supported tracker protocols.
const (
	SchemeUDP Scheme = iota
	SchemeHTTP
	SchemeHTTPS
)

func (s Scheme) String() string {
	switch s {
	case SchemeUDP:
		return "udp"
	case SchemeHTTP:
		return "http"
	case SchemeHTTPS:
		return "https"
	default:
		return "scheme(" + strconv.Itoa(int(s)) + ")"
	}
}

// DefaultPort returns the port used when the tracker URL does not have one.
func (s Scheme) DefaultPort() int {
	if s == SchemeHTTPS {
		return 443
	}
	return 80
}

var (
	// ErrInvalidTracker is returned for URLs without a usable scheme or host.
	ErrInvalidTracker = errors.New("invalid tracker url")
	// ErrUnsupportedScheme is returned for URLs whose scheme is not udp, http or https.
	ErrUnsupportedScheme = errors.New("unsupported tracker protocol")
	// ErrDecode is returned when a tracker response cannot be understood.
	ErrDecode = errors.New("cannot decode response")
)

// Error is the string that is sent by the tracker in an error reply or as a failure reason.
type Error string

func (e Error) Error() string { return "tracker error: " + string(e) }

var passkeyRegexp = regexp.MustCompile(`(?i)^[a-z0-9]{32}$`)

// Address is the parsed form of a tracker URL.
type Address struct {
	Scheme Scheme
	Host   string
	Port   int
	// Passkey is "/<token>" if the URL path has a 32 character alphanumeric segment, empty otherwise.
	Passkey string
}

// ParseURL parses a tracker URL like "udp://tracker.example.org:6969/announce".
func ParseURL(rawURL string) (Address, error) {
	var a Address
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return a, fmt.Errorf("%w %q: %s", ErrInvalidTracker, rawURL, err)
	}
	if u.Scheme == "" || u.Hostname() == "" {
		return a, fmt.Errorf("%w %q: missing scheme or host", ErrInvalidTracker, rawURL)
	}
	switch strings.ToLower(u.Scheme) {
	case "udp":
		a.Scheme = SchemeUDP
	case "http":
		a.Scheme = SchemeHTTP
	case "https":
		a.Scheme = SchemeHTTPS
	default:
		return a, fmt.Errorf("%w %q", ErrUnsupportedScheme, u.Scheme)
	}
	a.Host = u.Hostname()
	a.Port = a.Scheme.DefaultPort()
	if p := u.Port(); p != "" {
		a.Port, err = strconv.Atoi(p)
		if err != nil || a.Port <= 0 || a.Port > 65535 {
			return a, fmt.Errorf("%w %q: bad port", ErrInvalidTracker, rawURL)
		}
	}
	for _, seg := range strings.Split(u.Path, "/") {
		if passkeyRegexp.MatchString(seg) {
			a.Passkey = "/" + seg
			break
		}
	}
	return a, nil
}

// HostPort returns "host:port" suitable for dialing.
func (a Address) HostPort() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// BaseURL returns "scheme://host:port" followed by the passkey, if any.
func (a Address) BaseURL() string {
	return a.Scheme.String() + "://" + a.HostPort() + a.Passkey
}

func (a Address) String() string {
	return a.Scheme.String() + "://" + a.HostPort()
}

// Record holds the swarm counters of a torrent as reported by a tracker.
type Record struct {
	Seeders   uint32 `json:"seeders"`
	Completed uint32 `json:"completed"`
	Leechers  uint32 `json:"leechers"`
}

// Records maps raw info hashes to their counters.
type Records map[[20]byte]Record
