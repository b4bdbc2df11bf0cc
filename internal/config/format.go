package config

// Format represents the log output format selected by configuration
type Format string

const (
	// FormatConsole writes human-readable key=value lines
	FormatConsole Format = "console"

	// FormatJSON writes one JSON object per line
	FormatJSON Format = "json"
)

// IsValid checks if the format is valid
func (f Format) IsValid() bool {
	return f == FormatConsole || f == FormatJSON
}

// String returns the string representation
func (f Format) String() string {
	return string(f)
}
