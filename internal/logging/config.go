package logging

import (
	"io"

	"github.com/kelseyhightower/envconfig"
)

// Config is the logging configuration read from the environment. Command
// line flags take precedence over it.
type Config struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"console"`
}

// ConfigFromEnv returns a Config populated from environment variables.
func ConfigFromEnv() Config {
	cfg := Config{}
	envconfig.MustProcess("", &cfg)
	return cfg
}

// NewLoggerFromConfig parses cfg and returns a Logger for it that writes to
// out.
func NewLoggerFromConfig(out io.Writer, cfg Config) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	format, err := ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	return NewLoggerWithOutput(out, level, format), nil
}
