package tracker

import (
	"encoding/hex"

	"github.com/gofrs/uuid"
)

// DefaultPeerIDPrefix follows the BEP 20 "-XXVVVV-" convention.
const DefaultPeerIDPrefix = "-TS0100-"

// NewPeerID returns a 20 byte peer id made of prefix and a random hex suffix.
// prefix is truncated if it is longer than 20 bytes.
func NewPeerID(prefix string) [20]byte {
	var id [20]byte
	n := copy(id[:], prefix)
	u := uuid.Must(uuid.NewV4())
	suffix := make([]byte, hex.EncodedLen(len(u)))
	hex.Encode(suffix, u[:])
	copy(id[n:], suffix)
	return id
}
