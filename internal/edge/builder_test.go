package edge

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailedge/internal/config"
	"mailedge/internal/logger"
	"mailedge/internal/reverselookup"
	pkgerrors "mailedge/pkg/errors"
)

const minimalMessage = "From: test@example.com\r\nSubject: hello\r\n\r\nbody\r\n"

func defaultEdgeConfig() config.EdgeConfig {
	return config.EdgeConfig{
		SenderHeader: "X-Envelope-Sender",
		RcptHeader:   "X-Envelope-Recipient",
		EhloHeader:   "X-Ehlo",
	}
}

func submission(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "message/rfc822")
	return req
}

func TestBuilder_Build(t *testing.T) {
	tests := []struct {
		name           string
		sender         string
		rcpt           string
		wantSender     string
		wantRecipients []string
	}{
		{name: "no headers", wantRecipients: []string{}},
		{name: "sender only", sender: "dGVzdA==", wantSender: "test", wantRecipients: []string{}},
		{name: "comma separated", rcpt: "QUJD, REVG", wantRecipients: []string{"ABC", "DEF"}},
		{name: "semicolon separated", rcpt: "QUJD;REVG ;  R0hJ", wantRecipients: []string{"ABC", "DEF", "GHI"}},
		{name: "single recipient", rcpt: "QUJD", wantRecipients: []string{"ABC"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := submission(minimalMessage)
			if tt.sender != "" {
				req.Header.Set("X-Envelope-Sender", tt.sender)
			}
			if tt.rcpt != "" {
				req.Header.Set("X-Envelope-Recipient", tt.rcpt)
			}

			env, err := NewBuilder(defaultEdgeConfig()).Build(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSender, env.Sender)
			assert.Equal(t, tt.wantRecipients, env.Recipients)
			assert.Equal(t, "hello", env.Header.Get("Subject"))
			assert.Equal(t, "body\r\n", string(env.Body))
		})
	}
}

func TestBuilder_BuildFaults(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *http.Request)
		body    string
		maxSize int64
		wantErr error
	}{
		{
			name:    "bad sender encoding",
			mutate:  func(r *http.Request) { r.Header.Set("X-Envelope-Sender", "not base64!") },
			wantErr: pkgerrors.ErrBadRequest,
		},
		{
			name:    "bad recipient segment",
			mutate:  func(r *http.Request) { r.Header.Set("X-Envelope-Recipient", "QUJD, ***") },
			wantErr: pkgerrors.ErrBadRequest,
		},
		{
			name:    "non numeric content length",
			mutate:  func(r *http.Request) { r.Header.Set("Content-Length", "abc") },
			wantErr: pkgerrors.ErrBadRequest,
		},
		{
			name:    "short body",
			mutate:  func(r *http.Request) { r.Header.Set("Content-Length", "4096") },
			wantErr: pkgerrors.ErrBadRequest,
		},
		{
			name:    "huge content length without size limit",
			mutate:  func(r *http.Request) { r.Header.Set("Content-Length", "1099511627776") },
			wantErr: pkgerrors.ErrBadRequest,
		},
		{
			name:    "negative content length",
			mutate:  func(r *http.Request) { r.Header.Set("Content-Length", "-1") },
			wantErr: pkgerrors.ErrBadRequest,
		},
		{
			name:    "malformed message",
			body:    " bad continuation\r\n\r\n",
			wantErr: pkgerrors.ErrBadRequest,
		},
		{
			name:    "too large",
			maxSize: 8,
			wantErr: pkgerrors.ErrTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := tt.body
			if body == "" {
				body = minimalMessage
			}
			req := submission(body)
			if tt.mutate != nil {
				tt.mutate(req)
			}

			cfg := defaultEdgeConfig()
			cfg.MaxMessageSize = tt.maxSize
			_, err := NewBuilder(cfg).Build(req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBuilder_RepeatedRecipientHeader(t *testing.T) {
	req := submission(minimalMessage)
	req.Header.Add("X-Envelope-Recipient", "QUJD")
	req.Header.Add("X-Envelope-Recipient", "REVG; R0hJ")

	env, err := NewBuilder(defaultEdgeConfig()).Build(req)
	require.NoError(t, err)
	assert.Equal(t, []string{"ABC", "DEF", "GHI"}, env.Recipients)
}

func TestBuilder_ReadsExactlyContentLength(t *testing.T) {
	req := submission(minimalMessage + "trailing garbage")
	req.Header.Set("Content-Length", strconv.Itoa(len(minimalMessage)))
	req.ContentLength = int64(len(minimalMessage))

	env, err := NewBuilder(defaultEdgeConfig()).Build(req)
	require.NoError(t, err)
	assert.Equal(t, "body\r\n", string(env.Body))
}

func TestBuilder_NoBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)

	env, err := NewBuilder(defaultEdgeConfig()).Build(req)
	require.NoError(t, err)
	assert.Empty(t, env.Body)
	assert.Equal(t, 0, env.Header.Len())
}

func finished(t *testing.T, host string) *reverselookup.Task {
	t.Helper()
	resolver := resolverFunc(func(ctx context.Context, ip string) (string, error) {
		if host == "" {
			return "", reverselookup.ErrNoRecord
		}
		return host, nil
	})
	task := reverselookup.NewEnricher(resolver, logger.NopLogger()).Start(context.Background(), "192.0.2.1")
	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("lookup did not finish")
	}
	return task
}

func TestBuilder_AddExtras(t *testing.T) {
	b := NewBuilder(defaultEdgeConfig())

	t.Run("defaults", func(t *testing.T) {
		req := submission(minimalMessage)
		env, err := b.Build(req)
		require.NoError(t, err)

		b.AddExtras(env, req, "192.0.2.1", finished(t, ""))
		assert.Equal(t, "192.0.2.1", env.Client.IP)
		assert.Empty(t, env.Client.Host)
		assert.Equal(t, "[192.0.2.1]", env.Client.Name)
		assert.Equal(t, "HTTP", env.Client.Protocol)
	})

	t.Run("resolved host and ehlo", func(t *testing.T) {
		req := submission(minimalMessage)
		req.Header.Set("X-Ehlo", "client.example.com")
		req.TLS = &tls.ConnectionState{}
		env, err := b.Build(req)
		require.NoError(t, err)

		b.AddExtras(env, req, "192.0.2.1", finished(t, "mail.example.com"))
		assert.Equal(t, "mail.example.com", env.Client.Host)
		assert.Equal(t, "client.example.com", env.Client.Name)
		assert.Equal(t, "HTTPS", env.Client.Protocol)
	})

	t.Run("unknown address", func(t *testing.T) {
		req := submission(minimalMessage)
		env, err := b.Build(req)
		require.NoError(t, err)

		b.AddExtras(env, req, "", finished(t, ""))
		assert.Equal(t, "[unknown]", env.Client.Name)
	})
}
