// Package infohash validates hex encoded info hashes given by callers.
package infohash

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// Size of a raw info hash in bytes.
const Size = 20

// Batch bounds for a single scrape call.
const (
	MinBatch = 1
	MaxBatch = 64
)

var (
	// ErrInvalid is returned for items that are not 40 hex characters.
	ErrInvalid = errors.New("invalid info hash")
	// ErrRange is returned when the number of valid hashes is out of bounds.
	ErrRange = fmt.Errorf("number of info hashes must be between %d and %d", MinBatch, MaxBatch)
)

// Hash is a validated info hash.
// Text is kept exactly as the caller wrote it and is used as the result key.
type Hash struct {
	Bytes [Size]byte
	Text  string
}

// Canonical returns the lowercase hex form.
func (h Hash) Canonical() string {
	return hex.EncodeToString(h.Bytes[:])
}

func (h Hash) String() string { return h.Text }

// Parse validates a single 40 character hex string. Upper and lower case are accepted.
func Parse(s string) (Hash, error) {
	var h Hash
	if len(s) != 2*Size {
		return h, fmt.Errorf("%w %q: length %d", ErrInvalid, s, len(s))
	}
	if _, err := hex.Decode(h.Bytes[:], []byte(s)); err != nil {
		return h, fmt.Errorf("%w %q", ErrInvalid, s)
	}
	h.Text = s
	return h, nil
}

// Normalize parses every item in raw and returns the valid ones in input order.
// Invalid items are dropped and reported one error each.
// Duplicates are kept.
// If the number of valid hashes is out of [MinBatch, MaxBatch] no hash is returned and
// the last error is ErrRange.
func Normalize(raw []string) ([]Hash, []error) {
	var errs []error
	hashes := make([]Hash, 0, len(raw))
	for _, s := range raw {
		h, err := Parse(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		hashes = append(hashes, h)
	}
	if len(hashes) < MinBatch || len(hashes) > MaxBatch {
		errs = append(errs, fmt.Errorf("%w (got %d)", ErrRange, len(hashes)))
		return nil, errs
	}
	return hashes, errs
}
