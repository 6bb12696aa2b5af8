package payment

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/practicebilling/pkg/logger"
	"github.com/dmitrymomot/practicebilling/pkg/webhook"
)

// WebhookHandler runs queued gateway events through the payment service.
type WebhookHandler struct {
	svc      *Service
	verifier *webhook.Verifier
	logger   *slog.Logger
}

var _ webhook.Handler = (*WebhookHandler)(nil)

func NewWebhookHandler(svc *Service, verifier *webhook.Verifier) *WebhookHandler {
	if svc == nil || verifier == nil {
		panic("payment: webhook handler needs a service and a verifier")
	}
	return &WebhookHandler{
		svc:      svc,
		verifier: verifier,
		logger:   svc.logger,
	}
}

// HandleJob re-verifies the stored signature before parsing, so a job
// recovered from a shared store is never trusted blindly.
func (h *WebhookHandler) HandleJob(ctx context.Context, job *webhook.Job) error {
	if err := h.verifier.Check(job.Payload, job.Signature); err != nil {
		return err
	}
	ev, err := ParseEvent(job.Payload)
	if err != nil {
		return err
	}

	processed, err := h.svc.HandleEvent(ctx, ev)
	if err != nil {
		return err
	}
	if !processed {
		h.logger.InfoContext(ctx, "webhook job skipped", logger.JobID(job.ID), logger.Event(ev.Event))
	}
	return nil
}
