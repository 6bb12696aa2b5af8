package email_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/practicebilling/pkg/email"
)

func validParams() email.SendEmailParams {
	return email.SendEmailParams{
		SendTo:   "dr.rao@clinic.example.com",
		Subject:  "Your subscription expires in 3 days",
		BodyHTML: "<p>Renew soon.</p>",
		Tag:      "expiry-reminder",
	}
}

func TestSendEmailParams_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(p *email.SendEmailParams)
		wantErr bool
	}{
		{"valid", func(*email.SendEmailParams) {}, false},
		{"bad recipient", func(p *email.SendEmailParams) { p.SendTo = "clinic" }, true},
		{"empty subject", func(p *email.SendEmailParams) { p.Subject = " " }, true},
		{"empty body", func(p *email.SendEmailParams) { p.BodyHTML = "" }, true},
		{"no tag is fine", func(p *email.SendEmailParams) { p.Tag = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := validParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, email.ErrInvalidParams)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDevSender_SendEmail(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "mail")
	sender := email.NewDevSender(dir)

	require.NoError(t, sender.SendEmail(context.Background(), validParams()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var htmlFile, jsonFile string
	for _, e := range entries {
		switch filepath.Ext(e.Name()) {
		case ".html":
			htmlFile = e.Name()
		case ".json":
			jsonFile = e.Name()
		}
	}
	assert.True(t, strings.HasSuffix(htmlFile, "_expiry-reminder.html"))

	body, err := os.ReadFile(filepath.Join(dir, htmlFile))
	require.NoError(t, err)
	assert.Equal(t, "<p>Renew soon.</p>", string(body))

	raw, err := os.ReadFile(filepath.Join(dir, jsonFile))
	require.NoError(t, err)
	var meta map[string]string
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, "dr.rao@clinic.example.com", meta["send_to"])
	assert.Equal(t, "expiry-reminder", meta["tag"])

	err = sender.SendEmail(context.Background(), email.SendEmailParams{SendTo: "x"})
	assert.ErrorIs(t, err, email.ErrInvalidParams)
}

func TestNewSender(t *testing.T) {
	t.Parallel()

	dev, err := email.NewSender(email.Config{DevDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &email.DevSender{}, dev)

	pm, err := email.NewSender(email.Config{
		PostmarkServerToken:  "server",
		PostmarkAccountToken: "account",
		SenderEmail:          "billing@practice.example.com",
		SupportEmail:         "support@practice.example.com",
	})
	require.NoError(t, err)
	assert.NotNil(t, pm)
}

func TestNewPostmarkClient_InvalidConfig(t *testing.T) {
	t.Parallel()

	base := email.Config{
		PostmarkServerToken:  "server",
		PostmarkAccountToken: "account",
		SenderEmail:          "billing@practice.example.com",
		SupportEmail:         "support@practice.example.com",
	}

	tests := map[string]func(c *email.Config){
		"no server token":  func(c *email.Config) { c.PostmarkServerToken = "" },
		"no account token": func(c *email.Config) { c.PostmarkAccountToken = "" },
		"bad sender":       func(c *email.Config) { c.SenderEmail = "billing" },
		"bad support":      func(c *email.Config) { c.SupportEmail = "" },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			mutate(&cfg)
			client, err := email.NewPostmarkClient(cfg)
			assert.ErrorIs(t, err, email.ErrInvalidConfig)
			assert.Nil(t, client)
		})
	}
}
