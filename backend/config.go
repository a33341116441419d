package backend

import (
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Engine names accepted by Config.Engine.
const (
	EngineStd      = "std"
	EngineDispatch = "dispatch"
)

// Config controls how a Backend is built.
type Config struct {
	Engine   string  `env:"TENSORLY_GORGONIA_ENGINE"     envDefault:"dispatch"`
	Dtype    string  `env:"TENSORLY_GORGONIA_DTYPE"      envDefault:"float64"`
	PinvRtol float64 `env:"TENSORLY_GORGONIA_PINV_RTOL"  envDefault:"1e-15"`
	LogLevel string  `env:"TENSORLY_GORGONIA_LOG_LEVEL"  envDefault:"warn"`
}

// DefaultConfig returns the configuration used when no environment
// overrides are present.
func DefaultConfig() Config {
	return Config{
		Engine:   EngineDispatch,
		Dtype:    "float64",
		PinvRtol: 1e-15,
		LogLevel: "warn",
	}
}

// LoadConfigFromEnv parses Config from the environment, applying the
// defaults above for unset variables.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse env")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the enumerated fields of cfg.
func (c Config) Validate() error {
	switch strings.ToLower(c.Engine) {
	case EngineStd, EngineDispatch:
	default:
		return errors.Wrapf(ErrUnknownEngine, "%q", c.Engine)
	}
	if _, ok := dtypeNames[strings.ToLower(c.Dtype)]; !ok {
		return errors.Wrapf(ErrUnsupportedDtype, "%q", c.Dtype)
	}
	if c.PinvRtol < 0 {
		return errors.Errorf("pinv rtol must be non-negative, got %g", c.PinvRtol)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return errors.Wrap(err, "log level")
	}
	return nil
}
