package gateway

import (
	"context"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryClient is an in-process gateway used by tests and local runs.
type MemoryClient struct {
	mu       sync.Mutex
	orders   map[string]*Order
	payments map[string]*Payment
	failNext error
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		orders:   make(map[string]*Order),
		payments: make(map[string]*Payment),
	}
}

func newID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
}

func (m *MemoryClient) CreateOrder(_ context.Context, req OrderRequest) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, ErrBadRequest.WithMessage("order amount must be positive")
	}

	order := &Order{
		ID:        newID("order"),
		Amount:    req.Amount,
		Currency:  req.Currency,
		Receipt:   req.Receipt,
		Status:    "created",
		Notes:     maps.Clone(req.Notes),
		CreatedAt: time.Now().Unix(),
	}
	m.orders[order.ID] = order
	cp := *order
	return &cp, nil
}

func (m *MemoryClient) FetchPayment(_ context.Context, paymentID string) (*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	if paymentID == "" {
		return nil, ErrMissingPaymentID
	}
	p, ok := m.payments[paymentID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

// Pay records a payment in the given state against an existing order and
// returns it. The order's notes are copied onto the payment.
func (m *MemoryClient) Pay(orderID, status string) *Payment {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := &Payment{
		ID:        newID("pay"),
		OrderID:   orderID,
		Status:    status,
		CreatedAt: time.Now().Unix(),
	}
	if o, ok := m.orders[orderID]; ok {
		p.Amount = o.Amount
		p.Currency = o.Currency
		p.Notes = maps.Clone(o.Notes)
		if status == PaymentCaptured {
			o.Status = "paid"
		}
	}
	if status == PaymentFailed {
		p.ErrorCode = "BAD_REQUEST_ERROR"
		p.ErrorDescription = "Payment was declined by the bank"
	}
	m.payments[p.ID] = p
	cp := *p
	return &cp
}

// SetPayment stores or replaces a payment as-is.
func (m *MemoryClient) SetPayment(p Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = &p
}

// Order returns a recorded order.
func (m *MemoryClient) Order(id string) (*Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, false
	}
	cp := *o
	return &cp, true
}

// FailNext makes the next call return err.
func (m *MemoryClient) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

func (m *MemoryClient) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}
