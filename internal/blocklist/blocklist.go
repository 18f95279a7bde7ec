// Package blocklist refuses tracker addresses that fall into configured IPv4 ranges.
package blocklist

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"os"
	"sort"
	"sync"

	"github.com/google/btree"
	"github.com/mitchellh/go-homedir"
)

var errNotIPv4Address = errors.New("address is not ipv4")

// Blocklist holds merged IP ranges in a B-tree ordered by their first address.
type Blocklist struct {
	logger Logger

	tree  *btree.BTreeG[ipRange]
	m     sync.RWMutex
	count int
}

// Logger prints error messages during loading. Arguments are handled in the manner of fmt.Printf.
type Logger func(format string, v ...any)

// New returns a new Blocklist.
func New() *Blocklist {
	return NewLogger(nil)
}

// NewLogger returns a new Blocklist with a logger that prints error messages during loading.
func NewLogger(logger Logger) *Blocklist {
	return &Blocklist{logger: logger, tree: newTree()}
}

func newTree() *btree.BTreeG[ipRange] {
	return btree.NewG(8, func(a, b ipRange) bool { return a.first < b.first })
}

// Len returns the number of rules in the Blocklist.
func (b *Blocklist) Len() int {
	b.m.RLock()
	defer b.m.RUnlock()
	return b.count
}

// Blocked returns true if ip is in Blocklist.
func (b *Blocklist) Blocked(ip net.IP) bool {
	ip = ip.To4()
	if ip == nil {
		return false
	}
	val := binary.BigEndian.Uint32(ip)

	b.m.RLock()
	defer b.m.RUnlock()
	var found bool
	b.tree.DescendLessOrEqual(ipRange{first: val}, func(r ipRange) bool {
		found = val <= r.last
		return false
	})
	return found
}

// LoadFile reads rules from the file at path. "~" is expanded to the home directory.
func (b *Blocklist) LoadFile(path string) (int, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return b.Reload(f)
}

// Reload replaces the rules by reading new ones from r, one CIDR per line.
// Empty lines and lines starting with '#' are ignored.
func (b *Blocklist) Reload(r io.Reader) (int, error) {
	tree, n, err := load(r, b.logger)
	if err != nil {
		return n, err
	}

	b.m.Lock()
	b.tree = tree
	b.count = n
	b.m.Unlock()
	return n, nil
}

func load(r io.Reader, logger Logger) (*btree.BTreeG[ipRange], int, error) {
	var ranges []ipRange
	var hasError bool
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		l := bytes.TrimSpace(scanner.Bytes())
		if len(l) == 0 || l[0] == '#' {
			continue
		}
		r, err := parseCIDR(l)
		if err != nil {
			hasError = true
			if logger != nil {
				logger("cannot parse blocklist line (%q): %q", string(l), err.Error())
			}
			continue
		}
		ranges = append(ranges, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, err
	}
	if len(ranges) == 0 && hasError {
		// At least one line must be correct before we consider the load operation as successful.
		return nil, 0, errors.New("no valid rules")
	}
	tree := newTree()
	for _, r := range merge(ranges) {
		tree.ReplaceOrInsert(r)
	}
	return tree, len(ranges), nil
}

// merge sorts ranges and joins the overlapping or adjacent ones so that a lookup needs a single predecessor.
func merge(ranges []ipRange) []ipRange {
	if len(ranges) == 0 {
		return nil
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].first < ranges[j].first })
	out := []ipRange{ranges[0]}
	for _, r := range ranges[1:] {
		last := &out[len(out)-1]
		if last.last == ^uint32(0) || r.first <= last.last+1 {
			if r.last > last.last {
				last.last = r.last
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

type ipRange struct {
	first, last uint32
}

func parseCIDR(b []byte) (r ipRange, err error) {
	_, ipnet, err := net.ParseCIDR(string(b))
	if err != nil {
		return
	}
	if len(ipnet.IP) != 4 || len(ipnet.Mask) != 4 {
		err = errNotIPv4Address
		return
	}
	r.first = binary.BigEndian.Uint32(ipnet.IP)
	r.last = r.first | ^binary.BigEndian.Uint32(ipnet.Mask)
	return
}
