package marketplace

// ---------------------------------------------------------------------------
// ProviderCode represents an external marketplace
// ---------------------------------------------------------------------------

// ProviderCode represents an external marketplace
type ProviderCode string

const (
	// ProviderCodeBrickLink represents the BrickLink marketplace
	ProviderCodeBrickLink ProviderCode = "BRICKLINK"
	// ProviderCodeBrickOwl represents the BrickOwl marketplace
	ProviderCodeBrickOwl ProviderCode = "BRICKOWL"
)

// IsValid returns true if the provider code is valid
func (c ProviderCode) IsValid() bool {
	switch c {
	case ProviderCodeBrickLink, ProviderCodeBrickOwl:
		return true
	default:
		return false
	}
}

// String returns the string representation of ProviderCode
func (c ProviderCode) String() string {
	return string(c)
}

// DisplayName returns a human-readable name for the provider
func (c ProviderCode) DisplayName() string {
	switch c {
	case ProviderCodeBrickLink:
		return "BrickLink"
	case ProviderCodeBrickOwl:
		return "BrickOwl"
	default:
		return string(c)
	}
}

// SupportsWebhooks returns true if the provider pushes order notifications
func (c ProviderCode) SupportsWebhooks() bool {
	return c == ProviderCodeBrickLink
}

// AllProviderCodes returns every supported provider code
func AllProviderCodes() []ProviderCode {
	return []ProviderCode{ProviderCodeBrickLink, ProviderCodeBrickOwl}
}
