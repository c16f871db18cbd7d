package edge

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"mailedge/internal/config"
	"mailedge/internal/constants"
	"mailedge/internal/envelope"
	"mailedge/internal/reverselookup"
	pkgerrors "mailedge/pkg/errors"
	"mailedge/pkg/metrics"
)

var recipientSeparator = regexp.MustCompile(`\s*[,;]\s*`)

type Builder struct {
	senderHeader string
	rcptHeader   string
	ehloHeader   string
	maxSize      int64
}

func NewBuilder(cfg config.EdgeConfig) *Builder {
	b := &Builder{
		senderHeader: cfg.SenderHeader,
		rcptHeader:   cfg.RcptHeader,
		ehloHeader:   cfg.EhloHeader,
		maxSize:      cfg.MaxMessageSize,
	}
	if b.senderHeader == "" {
		b.senderHeader = constants.DefaultSenderHeader
	}
	if b.rcptHeader == "" {
		b.rcptHeader = constants.DefaultRcptHeader
	}
	if b.ehloHeader == "" {
		b.ehloHeader = constants.DefaultEhloHeader
	}
	return b
}

// Build decodes the envelope headers and reads the message body.
func (b *Builder) Build(r *http.Request) (*envelope.Envelope, error) {
	sender, err := b.sender(r.Header)
	if err != nil {
		return nil, err
	}
	recipients, err := b.recipients(r.Header)
	if err != nil {
		return nil, err
	}

	data, err := b.readBody(r)
	if err != nil {
		return nil, err
	}
	metrics.EdgeMessageSizeBytes.Observe(float64(len(data)))

	env := envelope.New(sender, recipients)
	if err := env.Parse(data); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrBadRequest)
	}
	return env, nil
}

func (b *Builder) sender(h http.Header) (string, error) {
	raw := h.Get(b.senderHeader)
	if raw == "" {
		return "", nil
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", pkgerrors.Wrap(fmt.Errorf("%s: %w", b.senderHeader, err), pkgerrors.ErrBadRequest)
	}
	return string(decoded), nil
}

func (b *Builder) recipients(h http.Header) ([]string, error) {
	// Repeated header lines are one list, as if joined with commas.
	raw := strings.Join(h.Values(b.rcptHeader), ",")
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}

	parts := recipientSeparator.Split(raw, -1)
	recipients := make([]string, 0, len(parts))
	for _, part := range parts {
		decoded, err := base64.StdEncoding.DecodeString(part)
		if err != nil {
			return nil, pkgerrors.Wrap(fmt.Errorf("%s: %w", b.rcptHeader, err), pkgerrors.ErrBadRequest)
		}
		recipients = append(recipients, string(decoded))
	}
	return recipients, nil
}

func (b *Builder) readBody(r *http.Request) ([]byte, error) {
	length, err := contentLength(r)
	if err != nil {
		return nil, err
	}
	if b.maxSize > 0 && length > b.maxSize {
		return nil, pkgerrors.ErrTooLarge.WithDetail("content_length", length).
			WithMessage("message of %d bytes exceeds limit of %d", length, b.maxSize)
	}
	if length == 0 || r.Body == nil {
		return nil, nil
	}

	// The announced length is untrusted; memory grows only with bytes read.
	data, err := io.ReadAll(io.LimitReader(r.Body, length))
	if err != nil {
		return nil, pkgerrors.Wrap(fmt.Errorf("reading %d byte body: %w", length, err), pkgerrors.ErrBadRequest)
	}
	if int64(len(data)) < length {
		return nil, pkgerrors.ErrBadRequest.WithMessage("body ended after %d of %d bytes", len(data), length)
	}
	return data, nil
}

func contentLength(r *http.Request) (int64, error) {
	raw := r.Header.Get("Content-Length")
	if raw == "" {
		if r.ContentLength > 0 {
			return r.ContentLength, nil
		}
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, pkgerrors.ErrBadRequest.WithMessage("invalid Content-Length %q", raw)
	}
	return n, nil
}

// AddExtras fills in the client fields. Host is only set when the lookup
// task has already finished with a name.
func (b *Builder) AddExtras(env *envelope.Envelope, r *http.Request, clientIP string, task *reverselookup.Task) {
	env.Client.IP = clientIP

	if host, ok := task.Host(); ok {
		env.Client.Host = host
	}

	if name := r.Header.Get(b.ehloHeader); name != "" {
		env.Client.Name = name
	} else {
		addr := clientIP
		if addr == "" {
			addr = "unknown"
		}
		env.Client.Name = "[" + addr + "]"
	}

	env.Client.Protocol = "HTTP"
	if r.TLS != nil {
		env.Client.Protocol = "HTTPS"
	}
}
