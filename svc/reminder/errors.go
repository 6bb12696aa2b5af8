package reminder

import "errors"

var (
	ErrAlreadyRunning   = errors.New("reminder: run already in progress")
	ErrUnknownAccount   = errors.New("reminder: no contact for account")
	ErrInvalidContacts  = errors.New("reminder: invalid contacts file")
	ErrInvalidThreshold = errors.New("reminder: thresholds must be positive")
)
