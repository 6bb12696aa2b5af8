package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrymomot/practicebilling/pkg/webhook"
	"github.com/dmitrymomot/practicebilling/svc/payment"
)

type webhookAck struct {
	Processed bool   `json:"processed"`
	Event     string `json:"event"`
	JobID     string `json:"job_id,omitempty"`
}

// ingestWebhook verifies the raw body before anything is parsed. Accepted
// events are queued and acknowledged with 202.
func (h *handlers) ingestWebhook(r *http.Request) Response {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return Error(ErrBodyTooLarge)
		}
		return Error(ErrMalformedBody.WithCause(err))
	}

	signature := r.Header.Get(webhook.SignatureHeader)
	if err := h.deps.Verifier.Check(body, signature); err != nil {
		return Error(err)
	}

	ev, err := payment.ParseEvent(body)
	if err != nil {
		return Error(err)
	}
	if !payment.IsRecognized(ev.Event) {
		return JSON(http.StatusOK, webhookAck{Event: ev.Event})
	}

	job, err := h.deps.Webhooks.Submit(r.Context(), body, signature, webhookHeaders(r.Header), payment.EventPriority(ev.Event))
	if err != nil {
		return Error(err)
	}
	return JSON(http.StatusAccepted, webhookAck{Processed: true, Event: ev.Event, JobID: job.ID})
}

// webhookHeaders keeps the gateway's own headers for operator review.
func webhookHeaders(h http.Header) map[string]string {
	out := make(map[string]string)
	for name, values := range h {
		if len(values) == 0 || !strings.HasPrefix(strings.ToLower(name), "x-") {
			continue
		}
		if strings.EqualFold(name, webhook.SignatureHeader) {
			continue
		}
		out[name] = values[0]
	}
	return out
}
