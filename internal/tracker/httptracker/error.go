package httptracker

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/zeebo/bencode"

	"github.com/cenkalti/trackerscrape/internal/tracker"
)

// StatusError is returned when the response code is not 200 OK.
type StatusError struct {
	Code   int
	Header http.Header
	Body   string
}

func (e *StatusError) Error() string {
	return "http status: " + strconv.Itoa(e.Code)
}

// failureResponse is what trackers send instead of the expected dictionary when they refuse a request.
type failureResponse struct {
	FailureReason string `bencode:"failure reason"`
	RetryIn       string `bencode:"retry in"`
}

// unexpectedResponse explains a body that does not start with the expected bytes.
// Trackers usually send a "failure reason" in that case.
func unexpectedResponse(body []byte) error {
	var resp failureResponse
	if err := bencode.DecodeBytes(body, &resp); err == nil && resp.FailureReason != "" {
		return tracker.Error(resp.FailureReason)
	}
	const maxShown = 64
	if len(body) > maxShown {
		body = body[:maxShown]
	}
	return fmt.Errorf("%w: unexpected response: %q", tracker.ErrDecode, body)
}
