// Package validator checks request fields with small composable rules.
//
//	err := validator.Apply(
//		validator.Required("order_id", req.OrderID),
//		validator.HexString("signature", req.Signature, 64),
//		validator.When(req.Email != "", validator.Email("email", req.Email)),
//	)
//
// Apply returns ValidationErrors listing every failed rule, or nil. Callers
// usually attach it as the cause of a domain validation error.
package validator
