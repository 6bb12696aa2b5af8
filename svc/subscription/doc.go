// Package subscription implements the practice subscription lifecycle.
//
// A subscription moves ACTIVE -> GRACE_PERIOD -> EXPIRED purely as a
// function of time, and ACTIVE -> CANCELLED on user action, upgrade or
// refund. Time-driven transitions are evaluated lazily on every read by
// EvaluateExpiry and persisted when they change; SweepExpired applies them
// in bulk for the reminder scheduler.
//
// An account holds at most one ACTIVE subscription. Every multi-row change
// (create over a grace subscription, upgrade, renewal by payment) runs in a
// single unit of work through Transactor.WithinTx.
package subscription
