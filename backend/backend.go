package backend

import (
	"strings"

	"github.com/csotherden/gorgonia-tensorly/dispatch"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorgonia.org/tensor"
)

// Backend forwards the toolkit's operation vocabulary to gorgonia.org/tensor
// and gonum. It holds no tensor state between calls and is safe for
// concurrent use once built.
type Backend struct {
	cfg   Config
	eng   tensor.Engine
	dtype tensor.Dtype
	log   zerolog.Logger

	unary  map[string]UnaryFunc
	binary map[string]BinaryFunc
	consts map[string]float64
}

// Option configures a Backend.
type Option func(*Backend)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(b *Backend) { b.cfg = cfg }
}

// WithEngine attaches eng to every tensor the backend creates. It takes
// precedence over Config.Engine.
func WithEngine(eng tensor.Engine) Option {
	return func(b *Backend) { b.eng = eng }
}

// WithLogger sets the logger. Its level is capped by Config.LogLevel.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Backend) { b.log = l }
}

// New builds a Backend and its static operation tables.
func New(opts ...Option) (*Backend, error) {
	b := &Backend{
		cfg: DefaultConfig(),
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if err := b.cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "backend config")
	}

	level, _ := zerolog.ParseLevel(strings.ToLower(b.cfg.LogLevel))
	b.log = b.log.Level(level).With().Str("backend", b.Name()).Logger()

	b.dtype = dtypeNames[strings.ToLower(b.cfg.Dtype)]
	if b.eng == nil {
		b.eng = newEngine(strings.ToLower(b.cfg.Engine), b.log)
	}

	b.unary = buildUnary()
	b.binary = buildBinary()
	b.consts = buildConstants()

	b.log.Debug().
		Str("engine", b.cfg.Engine).
		Stringer("dtype", b.dtype).
		Int("ops", len(b.unary)+len(b.binary)).
		Msg("backend ready")
	return b, nil
}

// NewFromEnv builds a Backend from LoadConfigFromEnv. Options are applied
// after the environment configuration.
func NewFromEnv(opts ...Option) (*Backend, error) {
	cfg, err := LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return New(append([]Option{WithConfig(cfg)}, opts...)...)
}

func newEngine(name string, log zerolog.Logger) tensor.Engine {
	if name == EngineStd {
		return tensor.StdEng{}
	}
	return dispatch.New(dispatch.WithLogger(log))
}

// Name identifies the backend to the toolkit.
func (b *Backend) Name() string { return "gorgonia" }

// Engine returns the engine attached to tensors built by the backend.
func (b *Backend) Engine() tensor.Engine { return b.eng }

// DefaultDtype is the dtype used by creation functions when none is given.
func (b *Backend) DefaultDtype() tensor.Dtype { return b.dtype }

// Context is the minimal descriptor the toolkit keeps to build tensors
// like an existing one.
type Context struct {
	Dtype tensor.Dtype
}

// Context returns the dtype descriptor of t.
func (b *Backend) Context(t tensor.Tensor) (Context, error) {
	if t == nil {
		return Context{}, errors.Wrap(ErrNotTensor, "nil tensor")
	}
	return Context{Dtype: t.Dtype()}, nil
}

// dtypeOr returns the first dtype or fallback.
func dtypeOr(dtype []tensor.Dtype, fallback tensor.Dtype) tensor.Dtype {
	if len(dtype) > 0 {
		return dtype[0]
	}
	return fallback
}
