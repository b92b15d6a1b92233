package shared

// DomainError is an error raised by a domain invariant. Code is the stable
// machine-readable identifier the HTTP layer maps to a wire code and status;
// Message is safe to show to API callers.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError builds a DomainError. Domain packages call this at the point
// an invariant fails rather than sharing sentinel values, so each site keeps
// its own message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}
