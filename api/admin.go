package api

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/practicebilling/pkg/apperr"
	"github.com/dmitrymomot/practicebilling/pkg/webhook"
	"github.com/dmitrymomot/practicebilling/svc/reminder"
)

var errReminderRunInProgress = apperr.BusinessRule(
	"REMINDER_RUN_IN_PROGRESS",
	"reminder run already in progress",
	"A reminder run is already in progress.",
)

func (h *handlers) failedWebhooks(r *http.Request) Response {
	jobs, err := h.deps.Webhooks.Failed(r.Context())
	if err != nil {
		return Error(err)
	}
	if jobs == nil {
		jobs = []*webhook.Job{}
	}
	return JSON(http.StatusOK, jobs)
}

func (h *handlers) webhookStats(_ *http.Request) Response {
	return JSON(http.StatusOK, h.deps.Webhooks.Stats())
}

func (h *handlers) clearWebhooks(r *http.Request) Response {
	dropped, err := h.deps.Webhooks.Clear(r.Context())
	if err != nil {
		return Error(err)
	}
	h.log.WarnContext(r.Context(), "webhook queue cleared by operator")
	return JSON(http.StatusOK, map[string]int{"dropped": dropped})
}

func (h *handlers) runReminders(r *http.Request) Response {
	report, err := h.deps.Reminders.RunOnce(r.Context())
	if errors.Is(err, reminder.ErrAlreadyRunning) {
		return Error(errReminderRunInProgress)
	}
	if err != nil {
		return Error(err)
	}
	return JSON(http.StatusOK, report)
}
