package api

import (
	"net/http"

	"github.com/dmitrymomot/practicebilling/svc/payment"
	"github.com/dmitrymomot/practicebilling/svc/subscription"
)

type createOrderRequest struct {
	Plan     string               `json:"plan"`
	Customer payment.CustomerInfo `json:"customer"`
}

func (h *handlers) createOrder(r *http.Request) Response {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		return Error(err)
	}
	plan, err := subscription.ParsePlan(req.Plan)
	if err != nil {
		return Error(err)
	}

	order, err := h.deps.Payments.CreateOrder(r.Context(), accountID(r), plan, req.Customer)
	if err != nil {
		return Error(err)
	}
	return JSON(http.StatusCreated, order)
}

// verifyPayment returns the outcome even for duplicates and signature
// failures so the checkout page can render it.
func (h *handlers) verifyPayment(r *http.Request) Response {
	var req payment.VerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		return Error(err)
	}
	req.AccountID = accountID(r)

	res, err := h.deps.Payments.VerifyPayment(r.Context(), req)
	switch {
	case err != nil && res != nil:
		return Error(err, res)
	case err != nil:
		return Error(err)
	case !res.Success:
		return JSON(http.StatusPaymentRequired, res)
	}
	return JSON(http.StatusOK, res)
}

func (h *handlers) transactions(r *http.Request) Response {
	txns, err := h.deps.Payments.Transactions(r.Context(), accountID(r))
	if err != nil {
		return Error(err)
	}
	if txns == nil {
		txns = []*payment.Transaction{}
	}
	return JSON(http.StatusOK, txns)
}

