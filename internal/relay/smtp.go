package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-smtp"

	"mailedge/internal/config"
	"mailedge/internal/constants"
	"mailedge/internal/envelope"
	"mailedge/internal/logger"
	"mailedge/internal/reply"
	"mailedge/pkg/metrics"
)

type SMTPRelay struct {
	address string
	helo    string
	timeout time.Duration
	logger  logger.Logger
	dialer  net.Dialer
}

func NewSMTPRelay(cfg config.SMTPRelayConfig, log logger.Logger) *SMTPRelay {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultRelayTimeout
	}
	helo := cfg.Helo
	if helo == "" {
		helo = "localhost"
	}
	return &SMTPRelay{
		address: cfg.Address,
		helo:    helo,
		timeout: timeout,
		logger:  log,
	}
}

func (r *SMTPRelay) Attempt(ctx context.Context, env *envelope.Envelope) (err error) {
	defer func() {
		metrics.RelayAttemptsTotal.WithLabelValues(resultLabel(err)).Inc()
	}()

	msg, err := env.Bytes()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	conn, err := r.dialer.DialContext(ctx, "tcp", r.address)
	if err != nil {
		r.logger.WarnwCtx(ctx, "Relay connection failed", "address", r.address, "error", err)
		return &Error{Reply: reply.ConnectFail, Err: err}
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(r.helo); err != nil {
		return toError(err)
	}
	if err := c.SendMail(env.Sender, env.Recipients, bytes.NewReader(msg)); err != nil {
		return toError(err)
	}
	if err := c.Quit(); err != nil {
		r.logger.DebugwCtx(ctx, "Relay QUIT failed after delivery", "error", err)
	}

	r.logger.InfowCtx(ctx, "Relayed message",
		"address", r.address,
		"recipients", len(env.Recipients),
		"bytes", len(msg),
	)
	return nil
}

func toError(err error) error {
	var smtpErr *smtp.SMTPError
	if !errors.As(err, &smtpErr) {
		return &Error{Reply: reply.ConnectFail, Err: err}
	}
	return &Error{Reply: replyFromSMTP(smtpErr), Err: err}
}

func replyFromSMTP(e *smtp.SMTPError) reply.Reply {
	msg := e.Message
	if e.EnhancedCode[0] > 0 {
		msg = fmt.Sprintf("%d.%d.%d %s", e.EnhancedCode[0], e.EnhancedCode[1], e.EnhancedCode[2], e.Message)
	}
	return reply.New(strconv.Itoa(e.Code), msg)
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	var relayErr *Error
	if errors.As(err, &relayErr) && relayErr.Reply.IsTransient() {
		return "transient"
	}
	if relayErr != nil && relayErr.Reply.IsPermanent() {
		return "permanent"
	}
	return "error"
}
