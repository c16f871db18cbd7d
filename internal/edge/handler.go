// Package edge accepts mail submissions over HTTP and answers with the
// outcome of the queue handoff.
package edge

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"mailedge/internal/config"
	"mailedge/internal/envelope"
	"mailedge/internal/logger"
	"mailedge/internal/queue"
	"mailedge/internal/reply"
	"mailedge/internal/reverselookup"
	pkgerrors "mailedge/pkg/errors"
	"mailedge/pkg/logging"
	"mailedge/pkg/metrics"
	"mailedge/pkg/tracing"
)

// LookupStarter begins a background reverse lookup of a client address.
// *reverselookup.Enricher implements it.
type LookupStarter interface {
	Start(ctx context.Context, ip string) *reverselookup.Task
}

type Handler struct {
	validator *Validator
	builder   *Builder
	enricher  LookupStarter
	queue     queue.Queue
	logger    logger.Logger
}

func NewHandler(cfg config.EdgeConfig, enricher LookupStarter, q queue.Queue, log logger.Logger) (*Handler, error) {
	validator, err := NewValidator(cfg.URIPattern)
	if err != nil {
		return nil, err
	}
	return &Handler{
		validator: validator,
		builder:   NewBuilder(cfg),
		enricher:  enricher,
		queue:     q,
		logger:    log,
	}, nil
}

// Handle serves one submission. The reverse lookup started here is stopped
// on every return path, and no path waits for it.
func (h *Handler) Handle(c *gin.Context) {
	ctx := c.Request.Context()
	clientIP := c.ClientIP()

	task := h.enricher.Start(ctx, clientIP)
	defer task.Stop()

	resp, err := h.process(ctx, c.Request, clientIP, task)
	if err != nil {
		h.fault(c, err)
		return
	}

	metrics.EdgeRequestsTotal.WithLabelValues(strconv.Itoa(resp.Status)).Inc()
	resp.write(c)
}

func (h *Handler) process(ctx context.Context, r *http.Request, clientIP string, task *reverselookup.Task) (resp *Response, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			resp, err = nil, pkgerrors.RecoverPanic(rec)
		}
	}()

	if rejected := h.validator.Validate(r); rejected != nil {
		metrics.EdgeRejectionsTotal.WithLabelValues(rejected.reason).Inc()
		return rejected, nil
	}

	env, err := h.builder.Build(r)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithMessageID(ctx, env.ID)

	h.builder.AddExtras(env, r, clientIP, task)

	results, err := h.handoff(ctx, env)
	if err != nil {
		return nil, err
	}

	if outcomesDiffer(results) {
		h.logger.WarnwCtx(ctx, "Recipients have mixed delivery outcomes, reporting the first",
			"recipients", len(results),
		)
	}

	resp, err = Translate(results)
	if err != nil {
		return nil, err
	}

	h.logger.InfowCtx(ctx, "Submission handled",
		"status", resp.Status,
		"reply", resp.Header.Get(reply.HeaderName),
		"sender", env.Sender,
		"recipients", len(env.Recipients),
		"client_ip", env.Client.IP,
		"client_host", env.Client.Host,
	)
	return resp, nil
}

func (h *Handler) handoff(ctx context.Context, env *envelope.Envelope) ([]queue.Result, error) {
	ctx, span := tracing.StartSpan(ctx, "edge.handoff")
	defer span.End()
	span.SetAttributes(
		attribute.String("envelope.id", env.ID),
		attribute.Int("envelope.recipients", len(env.Recipients)),
	)

	start := time.Now()
	results, err := h.queue.Handoff(ctx, env)
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.ObserveHandoffDuration(time.Since(start), status)
	return results, err
}

func (h *Handler) fault(c *gin.Context, err error) {
	code := pkgerrors.CodeOf(err)
	metrics.EdgeFaultsTotal.WithLabelValues(code).Inc()
	metrics.EdgeRequestsTotal.WithLabelValues(strconv.Itoa(http.StatusInternalServerError)).Inc()

	h.logger.ErrorwCtx(c.Request.Context(), "Submission failed",
		"error", err,
		"code", code,
		"path", c.Request.URL.Path,
	)

	_ = c.Error(err)
	c.Data(http.StatusInternalServerError, "text/plain", []byte(err.Error()+"\n"))
}
