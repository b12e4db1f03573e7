package logger

// Config is the logger's configuration (simplified).
type Config struct {
	Level string `json:"level"` // debug, info, warn, error (default: info)
}

// SetDefaults fills in defaults for any unset fields.
func (c *Config) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}
