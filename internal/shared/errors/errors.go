package errors

import "errors"

// Domain errors
var (
	// Connector errors
	ErrAuthentication = errors.New("authentication failed: invalid credentials")
	ErrConnection     = errors.New("directory connection failed")
	ErrNotConnected   = errors.New("not connected to directory")
	ErrQuery          = errors.New("directory query failed")

	// Scan errors
	ErrScanNotFound       = errors.New("scan not found")
	ErrInvalidScanStatus  = errors.New("invalid scan status")
	ErrScanAlreadyStarted = errors.New("scan already started")
	ErrScanFinished       = errors.New("scan already reached a terminal status")
	ErrScanCancelled      = errors.New("scan cancelled")
	ErrOrchestration      = errors.New("scan orchestration failed")

	// Finding errors
	ErrInvalidSeverity = errors.New("invalid severity")
	ErrEmptyTitle      = errors.New("finding title cannot be empty")

	// Report errors
	ErrReport          = errors.New("report generation failed")
	ErrUnknownFormat   = errors.New("unknown report format")
	ErrArtifactMissing = errors.New("report artifact not found")

	// Repository errors
	ErrRepositoryOperation = errors.New("repository operation failed")
	ErrInvalidData         = errors.New("invalid data")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrMissingRequired = errors.New("missing required field")
)
