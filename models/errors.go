package models

import "errors"

// Error taxonomy shared by the reconcilers and the HTTP adapter.
var (
	ErrStoreUnavailable   = errors.New("object store unavailable")
	ErrListFailure        = errors.New("bucket listing failed")
	ErrParseFailure       = errors.New("metadata parse failed")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPendingApproval    = errors.New("account is still pending approval")
	ErrUploadFailure      = errors.New("upload failed")
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
)
