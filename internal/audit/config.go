package audit

import "fmt"

// Output and format constants.
const (
	formatJSON = "json"
	formatText = "text"
)

// Config represents the audit logging configuration. All values are read
// once at startup; a changed configuration is applied by building a new
// logger and swapping it atomically (see AtomicLogger).
type Config struct {
	// Enabled enables audit logging. When false every entry is dropped
	// silently.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// MinimumLevel is the minimum severity to emit (INFO, WARNING, ERROR).
	// Entries below it are silently dropped.
	MinimumLevel string `yaml:"minimumLevel,omitempty" json:"minimumLevel,omitempty"`

	// Output specifies the output destination (stdout, stderr, file path).
	Output string `yaml:"output,omitempty" json:"output,omitempty"`

	// Format specifies the output format (json, text).
	Format string `yaml:"format,omitempty" json:"format,omitempty"`

	// ServerPort is reported as the process port in each entry.
	ServerPort int `yaml:"serverPort,omitempty" json:"serverPort,omitempty"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		MinimumLevel: string(SeverityInfo),
		Output:       "stdout",
		Format:       formatJSON,
	}
}

// GetEffectiveOutput returns the configured output or the default.
func (c *Config) GetEffectiveOutput() string {
	if c.Output == "" {
		return "stdout"
	}
	return c.Output
}

// GetEffectiveFormat returns the configured format or the default.
func (c *Config) GetEffectiveFormat() string {
	if c.Format == "" {
		return formatJSON
	}
	return c.Format
}

// Validate validates the audit configuration.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.MinimumLevel != "" && !Severity(c.MinimumLevel).IsValid() {
		return fmt.Errorf("invalid audit minimum level: %s", c.MinimumLevel)
	}
	if c.Format != "" && c.Format != formatJSON && c.Format != formatText {
		return fmt.Errorf("invalid audit format: %s (must be 'json' or 'text')", c.Format)
	}
	return nil
}
