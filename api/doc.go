// Package api exposes the billing engine over HTTP.
//
// Every response uses one envelope: {"data": ..., "error": {"code",
// "message", "retryable", "details"}}. Error status codes come from
// apperr.HTTPStatus, and the message is always the user-facing one.
//
// The account is identified by the X-Account-ID header, set by the upstream
// authentication layer. Webhook ingestion verifies the gateway signature
// before the body is parsed, then hands recognized events to the webhook
// processor and answers 202 without waiting for them.
package api
