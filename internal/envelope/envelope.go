package envelope

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message/textproto"
	"github.com/google/uuid"
)

// Client describes the submitting client. Host is empty when no reverse DNS
// name was known at handoff time.
type Client struct {
	IP       string `json:"ip"`
	Host     string `json:"host,omitempty"`
	Name     string `json:"name"`
	Protocol string `json:"protocol"`
}

// Envelope is a message plus the delivery metadata the queue needs.
type Envelope struct {
	ID         string
	Sender     string
	Recipients []string
	Header     textproto.Header
	Body       []byte
	Client     Client
	Timestamp  time.Time
}

func New(sender string, recipients []string) *Envelope {
	if recipients == nil {
		recipients = []string{}
	}
	return &Envelope{
		ID:         uuid.NewString(),
		Sender:     sender,
		Recipients: recipients,
		Timestamp:  time.Now(),
	}
}

// Parse splits raw RFC 822 data into the header block and the body.
func (e *Envelope) Parse(data []byte) error {
	br := bufio.NewReader(bytes.NewReader(data))
	header, err := textproto.ReadHeader(br)
	if err != nil {
		return fmt.Errorf("failed to parse message header: %w", err)
	}
	body, err := io.ReadAll(br)
	if err != nil {
		return fmt.Errorf("failed to read message body: %w", err)
	}
	e.Header = header
	e.Body = body
	return nil
}

// WriteTo writes the flattened message: header block, blank line, body.
func (e *Envelope) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	if err := textproto.WriteHeader(cw, e.Header); err != nil {
		return cw.n, fmt.Errorf("failed to write message header: %w", err)
	}
	if _, err := cw.Write(e.Body); err != nil {
		return cw.n, fmt.Errorf("failed to write message body: %w", err)
	}
	return cw.n, nil
}

func (e *Envelope) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := e.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
