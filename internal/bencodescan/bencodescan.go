// Package bencodescan pulls swarm counters out of tracker responses without decoding them.
//
// Scrape responses have the fixed shape
//
//	d5:filesd20:<info hash>d8:completei5e10:downloadedi10e10:incompletei2eee
//
// so the counters of a torrent are found by locating the length-prefixed info hash followed
// by a dictionary and looking for the three integer keys inside it.
// This is not a bencode parser and it only reads bounded regions of the input.
package bencodescan

import (
	"bytes"
	"errors"
)

// MaxRegion is the maximum number of bytes examined after a torrent marker.
const MaxRegion = 512

// Key tokens looked up in the torrent dictionary. Each is followed by digits and 'e'.
var (
	tokenComplete   = []byte("8:completei")
	tokenDownloaded = []byte("10:downloadedi")
	tokenIncomplete = []byte("10:incompletei")
	dictEnd         = []byte("ee")
)

// ErrNotFound is returned when the info hash does not appear in the buffer.
var ErrNotFound = errors.New("info hash not found in response")

// Stats are the counters found for a torrent. Missing keys are zero.
type Stats struct {
	Complete   uint32
	Downloaded uint32
	Incomplete uint32
}

// Marker returns the bytes that open the dictionary of infoHash: "20:<info hash>d".
func Marker(infoHash [20]byte) []byte {
	m := make([]byte, 0, 3+len(infoHash)+1)
	m = append(m, "20:"...)
	m = append(m, infoHash[:]...)
	return append(m, 'd')
}

// Extract finds the dictionary of infoHash in buf and returns its counters.
func Extract(buf []byte, infoHash [20]byte) (Stats, error) {
	var s Stats
	i := bytes.Index(buf, Marker(infoHash))
	if i < 0 {
		return s, ErrNotFound
	}
	region := Region(buf[i+len(infoHash)+4:])
	s.Complete = lookup(region, tokenComplete)
	s.Downloaded = lookup(region, tokenDownloaded)
	s.Incomplete = lookup(region, tokenIncomplete)
	return s, nil
}

// Region returns the part of b that belongs to the dictionary starting at b[0].
// It ends after the first "ee" (last integer value and dictionary end) and is never longer than MaxRegion.
func Region(b []byte) []byte {
	if len(b) > MaxRegion {
		b = b[:MaxRegion]
	}
	if j := bytes.Index(b, dictEnd); j >= 0 {
		b = b[:j+len(dictEnd)]
	}
	return b
}

func lookup(region, token []byte) uint32 {
	i := bytes.Index(region, token)
	if i < 0 {
		return 0
	}
	return parseUint(region[i+len(token):])
}

// parseUint reads decimal digits up to the terminating 'e'.
// Anything else, including overflow, yields 0.
func parseUint(b []byte) uint32 {
	var n uint64
	for i, c := range b {
		switch {
		case c == 'e':
			if i == 0 {
				return 0
			}
			return uint32(n)
		case c >= '0' && c <= '9':
			n = n*10 + uint64(c-'0')
			if n > 1<<32-1 {
				return 0
			}
		default:
			return 0
		}
	}
	return 0
}
