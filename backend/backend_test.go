package backend

import (
	"math"
	"os"
	"testing"

	"github.com/csotherden/gorgonia-tensorly/dispatch"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func newTestBackend(t *testing.T, opts ...Option) *Backend {
	t.Helper()
	b, err := New(opts...)
	require.NoError(t, err)
	return b
}

// engines returns a backend per supported engine so behaviour can be
// checked on both.
func engines(t *testing.T) map[string]*Backend {
	t.Helper()
	out := make(map[string]*Backend)
	for _, name := range []string{EngineStd, EngineDispatch} {
		cfg := DefaultConfig()
		cfg.Engine = name
		out[name] = newTestBackend(t, WithConfig(cfg))
	}
	return out
}

func mustTensor(t *testing.T, b *Backend, data interface{}, dtype ...tensor.Dtype) *tensor.Dense {
	t.Helper()
	d, err := b.Tensor(data, dtype...)
	require.NoError(t, err)
	return d
}

func mustReshape(t *testing.T, b *Backend, x tensor.Tensor, shape ...int) *tensor.Dense {
	t.Helper()
	d, err := b.Reshape(x, shape...)
	require.NoError(t, err)
	return d
}

func values(t *testing.T, d *tensor.Dense) []float64 {
	t.Helper()
	v, err := float64s(d)
	require.NoError(t, err)
	return v
}

func assertValues(t *testing.T, want []float64, d *tensor.Dense, tol float64) {
	t.Helper()
	got := values(t, d)
	require.Len(t, got, len(want))
	for i := range want {
		if math.IsInf(want[i], 0) || math.IsNaN(want[i]) {
			assert.Equal(t, want[i], got[i], "index %d", i)
			continue
		}
		assert.InDelta(t, want[i], got[i], tol, "index %d", i)
	}
}

func seq(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func TestNewDefaults(t *testing.T) {
	b := newTestBackend(t)
	assert.Equal(t, "gorgonia", b.Name())
	assert.Equal(t, tensor.Float64, b.DefaultDtype())
	assert.IsType(t, &dispatch.Eng{}, b.Engine())

	d, err := b.Zeros(tensor.Shape{2})
	require.NoError(t, err)
	assert.Same(t, b.Engine(), d.Engine())
}

func TestNewStdEngine(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine = EngineStd
	b := newTestBackend(t, WithConfig(cfg))
	assert.IsType(t, tensor.StdEng{}, b.Engine())
}

func TestNewWithEngineOverridesConfig(t *testing.T) {
	eng := dispatch.New(dispatch.WithMinBLASSize(64))
	cfg := DefaultConfig()
	cfg.Engine = EngineStd
	b := newTestBackend(t, WithConfig(cfg), WithEngine(eng))
	assert.Same(t, eng, b.Engine())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cases := map[string]struct {
		mutate func(*Config)
		target error
	}{
		"engine": {func(c *Config) { c.Engine = "metal" }, ErrUnknownEngine},
		"dtype":  {func(c *Config) { c.Dtype = "float16" }, ErrUnsupportedDtype},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			_, err := New(WithConfig(cfg))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.target), "got %v", err)
		})
	}

	cfg := DefaultConfig()
	cfg.PinvRtol = -1
	assert.Error(t, cfg.Validate())
	cfg = DefaultConfig()
	cfg.LogLevel = "loud"
	assert.Error(t, cfg.Validate())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("TENSORLY_GORGONIA_ENGINE", "std")
	t.Setenv("TENSORLY_GORGONIA_DTYPE", "float32")
	t.Setenv("TENSORLY_GORGONIA_PINV_RTOL", "1e-10")
	t.Setenv("TENSORLY_GORGONIA_LOG_LEVEL", "debug")

	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, Config{Engine: EngineStd, Dtype: "float32", PinvRtol: 1e-10, LogLevel: "debug"}, cfg)

	b, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, tensor.Float32, b.DefaultDtype())
	assert.IsType(t, tensor.StdEng{}, b.Engine())
}

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"ENGINE", "DTYPE", "PINV_RTOL", "LOG_LEVEL"} {
		name := "TENSORLY_GORGONIA_" + k
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigFromEnvInvalid(t *testing.T) {
	t.Setenv("TENSORLY_GORGONIA_PINV_RTOL", "tiny")
	_, err := LoadConfigFromEnv()
	assert.Error(t, err)

	t.Setenv("TENSORLY_GORGONIA_PINV_RTOL", "1e-15")
	t.Setenv("TENSORLY_GORGONIA_ENGINE", "cuda")
	_, err = LoadConfigFromEnv()
	assert.True(t, errors.Is(err, ErrUnknownEngine), "got %v", err)
}

func TestContext(t *testing.T) {
	b := newTestBackend(t)
	x := mustTensor(t, b, []int32{1, 2})
	ctx, err := b.Context(x)
	require.NoError(t, err)
	assert.Equal(t, Context{Dtype: tensor.Int32}, ctx)

	_, err = b.Context(nil)
	assert.True(t, errors.Is(err, ErrNotTensor))
}

func TestGuardRecoversEnginePanic(t *testing.T) {
	run := func() (err error) {
		defer guard("Solve", &err)
		panic("mat: dimension mismatch")
	}
	err := run()
	var ep *EnginePanic
	require.True(t, errors.As(err, &ep))
	assert.Equal(t, "Solve", ep.Op)
	assert.Contains(t, err.Error(), "dimension mismatch")
}
