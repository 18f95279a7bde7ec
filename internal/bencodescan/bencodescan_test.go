package bencodescan

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeebo/bencode"
)

var (
	hashA = [20]byte{0xaa, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19}
	hashB = [20]byte{0xbb, 'e', 'e', 'e'}
)

func scrapeBody(h [20]byte, dict string) []byte {
	var b bytes.Buffer
	b.WriteString("d5:filesd20:")
	b.Write(h[:])
	b.WriteString(dict)
	b.WriteString("ee")
	return b.Bytes()
}

func TestExtract(t *testing.T) {
	buf := scrapeBody(hashA, "d8:completei5e10:downloadedi10e10:incompletei2ee")
	s, err := Extract(buf, hashA)
	require.NoError(t, err)
	require.Equal(t, Stats{Complete: 5, Downloaded: 10, Incomplete: 2}, s)
}

func TestExtractAbsent(t *testing.T) {
	buf := scrapeBody(hashA, "d8:completei5e10:downloadedi10e10:incompletei2ee")
	_, err := Extract(buf, hashB)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExtractMissingKeyIsZero(t *testing.T) {
	buf := scrapeBody(hashA, "d8:completei7e10:incompletei3ee")
	s, err := Extract(buf, hashA)
	require.NoError(t, err)
	require.Equal(t, Stats{Complete: 7, Incomplete: 3}, s)
}

func TestExtractMalformedDigits(t *testing.T) {
	buf := scrapeBody(hashA, "d8:completei5x10:downloadedie10:incompletei99999999999ee")
	s, err := Extract(buf, hashA)
	require.NoError(t, err)
	require.Equal(t, Stats{}, s)
}

func TestExtractDoesNotReadNextTorrent(t *testing.T) {
	// hashA has no "downloaded" key, hashB has one.
	files := map[string]map[string]int{
		string(hashA[:]): {"complete": 1, "incomplete": 2},
		string(hashB[:]): {"complete": 3, "downloaded": 4, "incomplete": 5},
	}
	buf, err := bencode.EncodeBytes(map[string]any{"files": files})
	require.NoError(t, err)

	s, err := Extract(buf, hashA)
	require.NoError(t, err)
	require.Equal(t, Stats{Complete: 1, Incomplete: 2}, s)

	s, err = Extract(buf, hashB)
	require.NoError(t, err)
	require.Equal(t, Stats{Complete: 3, Downloaded: 4, Incomplete: 5}, s)
}

func TestRegionIsBounded(t *testing.T) {
	long := bytes.Repeat([]byte{'x'}, 4*MaxRegion)
	require.Len(t, Region(long), MaxRegion)
	require.Equal(t, []byte("i1ee"), Region([]byte("i1eei2ee")))
}

func TestParseUint(t *testing.T) {
	require.Equal(t, uint32(0), parseUint([]byte("e")))
	require.Equal(t, uint32(42), parseUint([]byte("42e")))
	require.Equal(t, uint32(4294967295), parseUint([]byte("4294967295e")))
	require.Equal(t, uint32(0), parseUint([]byte("4294967296e")))
	require.Equal(t, uint32(0), parseUint([]byte("-1e")))
	require.Equal(t, uint32(0), parseUint([]byte("12")))
}
