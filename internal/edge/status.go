package edge

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mailedge/internal/queue"
	"mailedge/internal/relay"
	"mailedge/internal/reply"
	pkgerrors "mailedge/pkg/errors"
	"mailedge/pkg/metrics"
)

// Response is the terminal answer to a submission.
type Response struct {
	Status int
	Header http.Header
	Body   []byte

	reason string
}

func rejection(status int, reason string) *Response {
	return &Response{Status: status, Header: http.Header{}, reason: reason}
}

func replyResponse(status int, r reply.Reply) *Response {
	h := http.Header{}
	h.Set(reply.HeaderName, r.HeaderValue())
	metrics.EdgeRepliesTotal.WithLabelValues(r.Code).Inc()
	return &Response{Status: status, Header: h}
}

func (r *Response) write(c *gin.Context) {
	for k, vs := range r.Header {
		for _, v := range vs {
			c.Writer.Header().Add(k, v)
		}
	}
	if len(r.Body) > 0 {
		c.Data(r.Status, c.Writer.Header().Get("Content-Type"), r.Body)
		return
	}
	c.Status(r.Status)
	c.Writer.WriteHeaderNow()
}

// Translate turns queue results into a response. Only the first result is
// consulted. Errors that are neither queue nor relay failures are returned
// as faults.
func Translate(results []queue.Result) (*Response, error) {
	if len(results) == 0 {
		return nil, pkgerrors.ErrNoResults
	}

	err := results[0].Err
	if err == nil {
		return replyResponse(http.StatusOK, reply.Accepted), nil
	}

	var queueErr *queue.Error
	if errors.As(err, &queueErr) {
		return replyResponse(http.StatusServiceUnavailable, reply.QueueFailure), nil
	}

	var relayErr *relay.Error
	if errors.As(err, &relayErr) {
		return replyResponse(relayStatus(relayErr.Reply.Code), relayErr.Reply), nil
	}

	return nil, err
}

func relayStatus(code string) int {
	switch {
	case strings.HasPrefix(code, "2"):
		return http.StatusOK
	case strings.HasPrefix(code, "4"):
		return http.StatusServiceUnavailable
	case code == "535":
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// outcomesDiffer reports whether any recipient got a different kind of
// outcome than the first one.
func outcomesDiffer(results []queue.Result) bool {
	if len(results) < 2 {
		return false
	}
	first := results[0].Err == nil
	for _, r := range results[1:] {
		if (r.Err == nil) != first {
			return true
		}
	}
	return false
}
