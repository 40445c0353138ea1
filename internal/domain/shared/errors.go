package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound              = NewDomainError("NOT_FOUND", "Resource not found")
	ErrInvalidInput          = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrUnresolvedVendor      = NewDomainError("UNRESOLVED_VENDOR", "Vendor identifier could not be resolved to a canonical code")
	ErrAmbiguousExactMatch   = NewDomainError("AMBIGUOUS_EXACT_MATCH", "Multiple entries share the same match key")
	ErrSchemaVersionMismatch = NewDomainError("SCHEMA_VERSION_MISMATCH", "Extract schema version is not supported")
	ErrRunAlreadyInProgress  = NewDomainError("RUN_ALREADY_IN_PROGRESS", "An uncommitted reconciliation run already exists")
	ErrCommitFailure         = NewDomainError("COMMIT_FAILURE", "Run could not be committed; no partial state was persisted")
)
