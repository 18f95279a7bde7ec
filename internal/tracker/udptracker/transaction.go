package udptracker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net"
	"time"
)

func newTransactionID() int32 {
	return rand.Int31() // nolint: gosec
}

// exchange writes req to conn and reads a single datagram into buf.
// Both operations must finish within timeout and before ctx is done.
func exchange(ctx context.Context, conn net.Conn, timeout time.Duration, req io.WriterTo, buf []byte) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if _, err := req.WriteTo(&out); err != nil {
		return nil, err
	}
	if _, err := conn.Write(out.Bytes()); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	n, err := conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return buf[:n], nil
}
