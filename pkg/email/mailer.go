package email

import (
	"context"
	"errors"

	"github.com/dmitrymomot/practicebilling/pkg/validator"
)

// EmailSender sends one transactional email.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams is a rendered email.
type SendEmailParams struct {
	SendTo   string `json:"send_to"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
	Tag      string `json:"tag,omitempty"`
}

// Validate checks the recipient and that subject and body are present.
func (p SendEmailParams) Validate() error {
	if err := validator.Apply(
		validator.Email("send_to", p.SendTo),
		validator.Required("subject", p.Subject),
		validator.MaxLen("subject", p.Subject, 998),
		validator.Required("body_html", p.BodyHTML),
		validator.MaxLen("tag", p.Tag, 1000),
	); err != nil {
		return errors.Join(ErrInvalidParams, err)
	}
	return nil
}

// NewSender returns a Postmark sender when tokens are configured and a
// DevSender otherwise.
func NewSender(cfg Config) (EmailSender, error) {
	if cfg.PostmarkEnabled() {
		return NewPostmarkClient(cfg)
	}
	return NewDevSender(cfg.DevDir), nil
}
