package constants

// Provider name constants for consistent usage across internal packages
const (
	ProviderYGG       = "YGG"
	ProviderSharewood = "SW"
	ProviderUnknown   = "Unknown"
)
