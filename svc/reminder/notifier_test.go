package reminder_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/practicebilling/pkg/email"
	"github.com/dmitrymomot/practicebilling/svc/reminder"
	"github.com/dmitrymomot/practicebilling/svc/subscription"
)

type captureSender struct {
	mu   sync.Mutex
	sent []email.SendEmailParams
}

func (c *captureSender) SendEmail(_ context.Context, p email.SendEmailParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.sent = append(c.sent, p)
	c.mu.Unlock()
	return nil
}

func testSubscription(account string) *subscription.Subscription {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &subscription.Subscription{
		ID:        uuid.New(),
		AccountID: account,
		Plan:      subscription.PlanMonthly,
		Status:    subscription.StatusActive,
		StartDate: start,
		EndDate:   start.Add(30 * day),
		Amount:    99900,
		Currency:  "INR",
	}
}

func TestEmailNotifier(t *testing.T) {
	t.Parallel()

	dir, err := reminder.LoadContacts("testdata/contacts.yaml")
	require.NoError(t, err)

	t.Run("expiring", func(t *testing.T) {
		t.Parallel()
		sender := &captureSender{}
		n := reminder.NewEmailNotifier(sender, dir)

		err := n.Notify(context.Background(), reminder.Reminder{
			Kind:         reminder.KindExpiring,
			Subscription: testSubscription("acc_rao"),
			DaysLeft:     3,
			Threshold:    3,
		})
		require.NoError(t, err)

		require.Len(t, sender.sent, 1)
		msg := sender.sent[0]
		assert.Equal(t, "dr.rao@clinic.example.com", msg.SendTo)
		assert.Equal(t, "Your subscription expires in 3 day(s)", msg.Subject)
		assert.Equal(t, "subscription-expiring", msg.Tag)
		assert.Contains(t, msg.BodyHTML, "Dr. Rao")
		assert.Contains(t, msg.BodyHTML, "monthly subscription ends on January 31, 2024")
	})

	t.Run("grace", func(t *testing.T) {
		t.Parallel()
		sender := &captureSender{}
		n := reminder.NewEmailNotifier(sender, dir)

		sub := testSubscription("acc_mehta")
		sub.Status = subscription.StatusGracePeriod
		err := n.Notify(context.Background(), reminder.Reminder{
			Kind:         reminder.KindGrace,
			Subscription: sub,
			DaysLeft:     2,
		})
		require.NoError(t, err)

		require.Len(t, sender.sent, 1)
		assert.Equal(t, "Your subscription has ended", sender.sent[0].Subject)
		assert.Equal(t, "subscription-grace", sender.sent[0].Tag)
		assert.Contains(t, sender.sent[0].BodyHTML, "Access continues for 2 more day(s).")
	})

	t.Run("unknown account", func(t *testing.T) {
		t.Parallel()
		sender := &captureSender{}
		n := reminder.NewEmailNotifier(sender, dir)

		err := n.Notify(context.Background(), reminder.Reminder{
			Kind:         reminder.KindExpiring,
			Subscription: testSubscription("acc_unknown"),
			DaysLeft:     1,
		})
		assert.ErrorIs(t, err, reminder.ErrUnknownAccount)
		assert.Empty(t, sender.sent)
	})
}

func TestLoadContacts(t *testing.T) {
	t.Parallel()

	dir, err := reminder.LoadContacts("testdata/contacts.yaml")
	require.NoError(t, err)
	assert.Len(t, dir, 2)
	assert.Equal(t, "Mehta Family Practice", dir["acc_mehta"].Name)

	_, err = reminder.LoadContacts("testdata/contacts_invalid.yaml")
	assert.ErrorIs(t, err, reminder.ErrInvalidContacts)

	_, err = reminder.LoadContacts("testdata/missing.yaml")
	assert.ErrorIs(t, err, reminder.ErrInvalidContacts)
}

func TestLogNotifier(t *testing.T) {
	t.Parallel()

	n := reminder.NewLogNotifier(slog.New(slog.DiscardHandler))
	assert.NoError(t, n.Notify(context.Background(), reminder.Reminder{
		Kind:         reminder.KindExpiring,
		Subscription: testSubscription("acc_rao"),
		DaysLeft:     7,
	}))
}

func TestNewEmailNotifier_Panics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { reminder.NewEmailNotifier(nil, reminder.MapDirectory{}) })
	assert.Panics(t, func() { reminder.NewEmailNotifier(&captureSender{}, nil) })
}
