package udptracker

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cenkalti/trackerscrape/internal/tracker"
)

const connectionIDMagic = 0x41727101980

// Event sent in announce requests. "stopped" keeps the tracker from adding us to the swarm.
const eventStopped int32 = 3

const (
	headerSize           = 8
	connectResponseSize  = 16
	scrapeRecordSize     = 12
	announceResponseSize = 20
	announceRequestSize  = 100
)

var (
	errShortResponse = errors.New("response is too short")
	errTransactionID = errors.New("transaction id mismatch")
)

type udpMessageHeader struct {
	Action        action
	TransactionID int32
}

type udpRequestHeader struct {
	ConnectionID int64
	udpMessageHeader
}

type connectRequest struct {
	udpRequestHeader
}

func newConnectRequest(transactionID int32) *connectRequest {
	req := new(connectRequest)
	req.ConnectionID = connectionIDMagic
	req.Action = actionConnect
	req.TransactionID = transactionID
	return req
}

func (r *connectRequest) WriteTo(w io.Writer) (int64, error) {
	return 16, binary.Write(w, binary.BigEndian, r)
}

type connectResponse struct {
	udpMessageHeader
	ConnectionID int64
}

type scrapeRequest struct {
	udpRequestHeader
	InfoHashes [][20]byte
}

func (r *scrapeRequest) WriteTo(w io.Writer) (int64, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 16+20*len(r.InfoHashes)))
	if err := binary.Write(buf, binary.BigEndian, r.udpRequestHeader); err != nil {
		return 0, err
	}
	for _, ih := range r.InfoHashes {
		buf.Write(ih[:])
	}
	return buf.WriteTo(w)
}

// scrapeRecord is the per torrent part of a scrape response. Fields are in wire order.
type scrapeRecord struct {
	Seeders   uint32
	Completed uint32
	Leechers  uint32
}

// announceRequest is always sent with zero counters. Port is a 16 bit field followed
// by 16 bits of extension flags, so the port starts at offset 96.
type announceRequest struct {
	udpRequestHeader
	InfoHash   [20]byte
	PeerID     [20]byte
	Downloaded int64
	Left       int64
	Uploaded   int64
	Event      int32
	IP         uint32
	Key        uint32
	NumWant    int32
	Port       uint16
	Extensions uint16
}

func (r *announceRequest) WriteTo(w io.Writer) (int64, error) {
	return announceRequestSize, binary.Write(w, binary.BigEndian, r)
}

type announceResponse struct {
	udpMessageHeader
	Interval int32
	Leechers int32
	Seeders  int32
}

// checkHeader validates the common part of a response.
// An error reply from the tracker is returned as tracker.Error.
func checkHeader(b []byte, want action, transactionID int32) error {
	if len(b) < headerSize {
		return fmt.Errorf("%w: %d bytes", errShortResponse, len(b))
	}
	var h udpMessageHeader
	h.Action = action(binary.BigEndian.Uint32(b[0:4]))
	h.TransactionID = int32(binary.BigEndian.Uint32(b[4:8]))
	if h.TransactionID != transactionID {
		return fmt.Errorf("%w: sent %d, received %d", errTransactionID, transactionID, h.TransactionID)
	}
	if h.Action == actionError {
		return tracker.Error(bytes.TrimRight(b[headerSize:], "\x00"))
	}
	if h.Action != want {
		return fmt.Errorf("invalid action in %s response: %s", want, h.Action)
	}
	return nil
}

func parseConnectResponse(b []byte, transactionID int32) (int64, error) {
	if err := checkHeader(b, actionConnect, transactionID); err != nil {
		return 0, err
	}
	if len(b) != connectResponseSize {
		return 0, fmt.Errorf("invalid connect response size: %d bytes", len(b))
	}
	var resp connectResponse
	if err := binary.Read(bytes.NewReader(b), binary.BigEndian, &resp); err != nil {
		return 0, err
	}
	return resp.ConnectionID, nil
}

func parseScrapeResponse(b []byte, transactionID int32, n int) ([]scrapeRecord, error) {
	if err := checkHeader(b, actionScrape, transactionID); err != nil {
		return nil, err
	}
	if len(b) != headerSize+scrapeRecordSize*n {
		return nil, fmt.Errorf("invalid scrape response size: %d bytes for %d torrents", len(b), n)
	}
	records := make([]scrapeRecord, n)
	if err := binary.Read(bytes.NewReader(b[headerSize:]), binary.BigEndian, records); err != nil {
		return nil, err
	}
	return records, nil
}

func parseAnnounceResponse(b []byte, transactionID int32) (*announceResponse, error) {
	if err := checkHeader(b, actionAnnounce, transactionID); err != nil {
		return nil, err
	}
	if len(b) < announceResponseSize {
		return nil, fmt.Errorf("%w: %d bytes", errShortResponse, len(b))
	}
	var resp announceResponse
	if err := binary.Read(bytes.NewReader(b[:announceResponseSize]), binary.BigEndian, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
