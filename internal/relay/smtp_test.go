package relay

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailedge/internal/config"
	"mailedge/internal/envelope"
	"mailedge/internal/logger"
)

type received struct {
	from string
	to   []string
	data []byte
}

type backend struct {
	mu       sync.Mutex
	messages []received
	rcptErr  error
}

func (b *backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &session{b: b}, nil
}

type session struct {
	b   *backend
	cur received
}

func (s *session) Mail(from string, opts *smtp.MailOptions) error {
	s.cur.from = from
	return nil
}

func (s *session) Rcpt(to string, opts *smtp.RcptOptions) error {
	if s.b.rcptErr != nil {
		return s.b.rcptErr
	}
	s.cur.to = append(s.cur.to, to)
	return nil
}

func (s *session) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.cur.data = data
	s.b.mu.Lock()
	s.b.messages = append(s.b.messages, s.cur)
	s.b.mu.Unlock()
	return nil
}

func (s *session) Reset()        { s.cur = received{} }
func (s *session) Logout() error { return nil }

func startServer(t *testing.T, be *backend) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := smtp.NewServer(be)
	srv.Domain = "relay.test"
	srv.ReadTimeout = 5 * time.Second
	srv.WriteTimeout = 5 * time.Second

	go srv.Serve(l)
	t.Cleanup(func() { srv.Close() })

	return l.Addr().String()
}

func testEnvelope(t *testing.T) *envelope.Envelope {
	t.Helper()
	env := envelope.New("sender@example.com", []string{"rcpt@example.com"})
	require.NoError(t, env.Parse([]byte("Subject: hi\r\n\r\nhello\r\n")))
	return env
}

func TestSMTPRelay_Delivers(t *testing.T) {
	be := &backend{}
	addr := startServer(t, be)

	r := NewSMTPRelay(config.SMTPRelayConfig{Address: addr, Helo: "edge.test"}, logger.NopLogger())
	require.NoError(t, r.Attempt(context.Background(), testEnvelope(t)))

	be.mu.Lock()
	defer be.mu.Unlock()
	require.Len(t, be.messages, 1)
	assert.Equal(t, "sender@example.com", be.messages[0].from)
	assert.Equal(t, []string{"rcpt@example.com"}, be.messages[0].to)
	assert.Contains(t, string(be.messages[0].data), "hello")
}

func TestSMTPRelay_RejectedRecipient(t *testing.T) {
	be := &backend{rcptErr: &smtp.SMTPError{
		Code:         550,
		EnhancedCode: smtp.EnhancedCode{5, 1, 1},
		Message:      "No such user",
	}}
	addr := startServer(t, be)

	r := NewSMTPRelay(config.SMTPRelayConfig{Address: addr}, logger.NopLogger())
	err := r.Attempt(context.Background(), testEnvelope(t))

	var relayErr *Error
	require.True(t, errors.As(err, &relayErr))
	assert.Equal(t, "550", relayErr.Reply.Code)
	assert.Equal(t, "5.1.1 No such user", relayErr.Reply.Message)
}

func TestSMTPRelay_ConnectFailure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()

	r := NewSMTPRelay(config.SMTPRelayConfig{Address: addr, Timeout: time.Second}, logger.NopLogger())
	err = r.Attempt(context.Background(), testEnvelope(t))

	var relayErr *Error
	require.True(t, errors.As(err, &relayErr))
	assert.Equal(t, "451", relayErr.Reply.Code)
	assert.True(t, relayErr.Reply.IsTransient())
}

func TestReplyFromSMTP(t *testing.T) {
	tests := []struct {
		name string
		err  *smtp.SMTPError
		code string
		msg  string
	}{
		{
			name: "enhanced code",
			err:  &smtp.SMTPError{Code: 535, EnhancedCode: smtp.EnhancedCode{5, 7, 8}, Message: "Authentication failed"},
			code: "535",
			msg:  "5.7.8 Authentication failed",
		},
		{
			name: "no enhanced code",
			err:  &smtp.SMTPError{Code: 450, EnhancedCode: smtp.NoEnhancedCode, Message: "Mailbox busy"},
			code: "450",
			msg:  "Mailbox busy",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := replyFromSMTP(tt.err)
			assert.Equal(t, tt.code, r.Code)
			assert.Equal(t, tt.msg, r.Message)
		})
	}
}
