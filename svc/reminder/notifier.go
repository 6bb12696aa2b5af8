package reminder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"math"
	"os"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/practicebilling/pkg/email"
	"github.com/dmitrymomot/practicebilling/pkg/logger"
	"github.com/dmitrymomot/practicebilling/pkg/validator"
)

// LogNotifier only logs reminders. It is the fallback when no contact
// directory is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(l *slog.Logger) *LogNotifier {
	if l == nil {
		l = slog.Default()
	}
	return &LogNotifier{logger: l}
}

func (n *LogNotifier) Notify(ctx context.Context, r Reminder) error {
	n.logger.InfoContext(ctx, "subscription reminder",
		logger.AccountID(r.Subscription.AccountID),
		logger.SubscriptionID(r.Subscription.ID),
		slog.String("kind", string(r.Kind)),
		slog.Int("days_left", r.DaysLeft),
		slog.Int("threshold", r.Threshold),
	)
	return nil
}

// Contact is the recipient of an account's billing mail.
type Contact struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// AccountDirectory resolves the billing contact of an account.
type AccountDirectory interface {
	Contact(ctx context.Context, accountID string) (Contact, error)
}

// MapDirectory is a static AccountDirectory.
type MapDirectory map[string]Contact

func (d MapDirectory) Contact(_ context.Context, accountID string) (Contact, error) {
	c, ok := d[accountID]
	if !ok {
		return Contact{}, fmt.Errorf("%w: %s", ErrUnknownAccount, accountID)
	}
	return c, nil
}

// LoadContacts reads a YAML map of account id to contact.
func LoadContacts(path string) (MapDirectory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidContacts, err)
	}

	var dir MapDirectory
	if err := yaml.Unmarshal(raw, &dir); err != nil {
		return nil, errors.Join(ErrInvalidContacts, err)
	}
	for id, c := range dir {
		if err := validator.Apply(validator.Email(id+".email", c.Email)); err != nil {
			return nil, errors.Join(ErrInvalidContacts, err)
		}
	}
	return dir, nil
}

var (
	expiringTmpl = template.Must(template.New("expiring").Parse(`<p>Hello {{.Name}},</p>
<p>Your {{.Plan}} subscription ends on {{.EndDate}}. {{.Remaining}}</p>
<p>Renew now for {{.Amount}} to keep uninterrupted access to your practice records.</p>`))

	graceTmpl = template.Must(template.New("grace").Parse(`<p>Hello {{.Name}},</p>
<p>Your {{.Plan}} subscription ended on {{.EndDate}}. {{.Remaining}}</p>
<p>Renew for {{.Amount}} before then to avoid losing access to paid features.</p>`))
)

type mailData struct {
	Name      string
	Plan      string
	EndDate   string
	Remaining string
	Amount    string
}

// EmailNotifier renders reminders to HTML and sends them with an
// email.EmailSender.
type EmailNotifier struct {
	sender    email.EmailSender
	directory AccountDirectory
	printer   *message.Printer
}

func NewEmailNotifier(sender email.EmailSender, directory AccountDirectory) *EmailNotifier {
	if sender == nil {
		panic("reminder: EmailSender is required")
	}
	if directory == nil {
		panic("reminder: AccountDirectory is required")
	}
	return &EmailNotifier{
		sender:    sender,
		directory: directory,
		printer:   message.NewPrinter(language.English),
	}
}

func (n *EmailNotifier) Notify(ctx context.Context, r Reminder) error {
	contact, err := n.directory.Contact(ctx, r.Subscription.AccountID)
	if err != nil {
		return err
	}

	sub := r.Subscription
	data := mailData{
		Name:    contact.Name,
		Plan:    strings.ToLower(string(sub.Plan)),
		EndDate: sub.EndDate.UTC().Format("January 2, 2006"),
		Amount:  n.formatAmount(sub.Amount, sub.Currency),
	}
	if data.Name == "" {
		data.Name = "there"
	}

	var (
		subject string
		tmpl    *template.Template
	)
	switch r.Kind {
	case KindGrace:
		subject = "Your subscription has ended"
		data.Remaining = n.printer.Sprintf("Access continues for %d more day(s).", r.DaysLeft)
		tmpl = graceTmpl
	default:
		subject = n.printer.Sprintf("Your subscription expires in %d day(s)", r.DaysLeft)
		data.Remaining = n.printer.Sprintf("That is %d day(s) from now.", r.DaysLeft)
		tmpl = expiringTmpl
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("render %s reminder: %w", r.Kind, err)
	}

	return n.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   contact.Email,
		Subject:  subject,
		BodyHTML: body.String(),
		Tag:      "subscription-" + string(r.Kind),
	})
}

// formatAmount renders minor units using the currency's standard scale.
func (n *EmailNotifier) formatAmount(amount int64, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return n.printer.Sprintf("%d %s", amount, code)
	}
	scale, _ := currency.Standard.Rounding(unit)
	value := float64(amount) / math.Pow10(scale)
	return n.printer.Sprint(currency.Symbol(unit.Amount(value)))
}
