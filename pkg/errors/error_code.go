package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Configuration errors (100-199)
	ErrCodeMissingDataRoot      ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidTimeframe     ErrorCode = 102
	ErrCodeInvalidStrategy      ErrorCode = 103
	ErrCodeVersionMismatch      ErrorCode = 104

	// Data/Resource errors (200-299)
	ErrCodeDataNotFound  ErrorCode = 200
	ErrCodeQueryFailed   ErrorCode = 201
	ErrCodeNoDataInRange ErrorCode = 202

	// Validation errors (300-399)
	ErrCodeMissingColumns   ErrorCode = 300
	ErrCodeColumnNotNumeric ErrorCode = 301
	ErrCodeNegativeValues   ErrorCode = 302
	ErrCodeEmptyData        ErrorCode = 303

	// Simulation errors (400-499)
	ErrCodeInvalidParameter ErrorCode = 400

	// Export errors (500-599)
	ErrCodeExportFailed ErrorCode = 500
)
