// Package reminder sends expiry and grace-period notices for subscriptions.
//
// A Scheduler runs one routine per interval: it persists time-driven status
// changes through the subscription service, then notifies ACTIVE
// subscriptions that cross a day threshold and subscriptions inside the
// grace window. Each subscription is notified at most once per UTC day; the
// SentLog records that across restarts (Redis) or for one process (memory).
//
// Overlapping triggers are rejected with ErrAlreadyRunning instead of being
// queued.
package reminder
