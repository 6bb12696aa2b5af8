// Package email sends transactional mail.
//
// NewSender picks the Postmark client when both tokens are configured and
// falls back to DevSender, which writes every message to a directory as an
// HTML file plus JSON metadata so local runs never send real mail.
package email
