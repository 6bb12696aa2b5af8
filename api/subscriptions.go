package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/practicebilling/svc/access"
	"github.com/dmitrymomot/practicebilling/svc/subscription"
)

type planRequest struct {
	Plan    string `json:"plan"`
	NewPlan string `json:"new_plan"`
}

func (h *handlers) subscriptionStatus(r *http.Request) Response {
	view, err := h.deps.Subscriptions.Status(r.Context(), accountID(r))
	if err != nil {
		return Error(err)
	}
	return JSON(http.StatusOK, view)
}

func (h *handlers) createSubscription(r *http.Request) Response {
	var req planRequest
	if err := decodeJSON(r, &req); err != nil {
		return Error(err)
	}
	plan, err := subscription.ParsePlan(req.Plan)
	if err != nil {
		return Error(err)
	}

	sub, err := h.deps.Subscriptions.Create(r.Context(), accountID(r), plan)
	if err != nil {
		return Error(err)
	}
	return JSON(http.StatusCreated, sub)
}

func (h *handlers) upgradeSubscription(r *http.Request) Response {
	var req planRequest
	if err := decodeJSON(r, &req); err != nil {
		return Error(err)
	}
	plan, err := subscription.ParsePlan(req.NewPlan)
	if err != nil {
		return Error(err)
	}

	sub, err := h.deps.Subscriptions.Upgrade(r.Context(), accountID(r), plan)
	if err != nil {
		return Error(err)
	}
	return JSON(http.StatusOK, sub)
}

func (h *handlers) cancelSubscription(r *http.Request) Response {
	sub, err := h.deps.Subscriptions.Cancel(r.Context(), accountID(r))
	if err != nil {
		return Error(err)
	}
	return JSON(http.StatusOK, sub)
}

func (h *handlers) subscriptionHistory(r *http.Request) Response {
	subs, err := h.deps.Subscriptions.History(r.Context(), accountID(r))
	if err != nil {
		return Error(err)
	}
	if subs == nil {
		subs = []*subscription.Subscription{}
	}
	return JSON(http.StatusOK, subs)
}

// checkFeature counts as one use of a rate-limited feature. Denials carry
// the decision as data next to the error and answer 403, or 429 when
// the usage window is exhausted.
func (h *handlers) checkFeature(r *http.Request) Response {
	d, err := h.deps.Access.CheckAccess(r.Context(), accountID(r), chi.URLParam(r, "name"))
	if err != nil {
		return Error(err)
	}
	if !d.Allowed {
		resp := Error(d.Err(), d).(jsonResponse)
		if d.Reason != access.ReasonRateLimitExceeded {
			resp.status = http.StatusForbidden
		}
		return resp
	}
	return JSON(http.StatusOK, d)
}
