package session

import (
	"log/slog"
	"runtime"
	"testing"

	"github.com/aretw0/coaxterm/pkg/device"
	"github.com/aretw0/coaxterm/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingFactory replaces the session constructors with counters.
func countingFactory(kind Kind, caps Capabilities, opts ...FactoryOption) (*Factory, *int, *int) {
	var tn3270Calls, vt100Calls int
	f := NewFactory(kind, caps, opts...)
	f.newTN3270 = func(*device.Terminal, TN3270Params, *slog.Logger) (Session, error) {
		tn3270Calls++
		return NewTN3270(nil, TN3270Params{}, nil, nil), nil
	}
	f.newVT100 = func(*device.Terminal, VT100Params, *slog.Logger) (Session, error) {
		vt100Calls++
		return NewVT100(nil, VT100Params{}, nil), nil
	}
	return f, &tn3270Calls, &vt100Calls
}

func TestFactory_New(t *testing.T) {
	terminal := &device.Terminal{Screen: device.NewBufferScreen(nil)}

	t.Run("TN3270", func(t *testing.T) {
		f, tn, vt := countingFactory(KindTN3270, Capabilities{})
		s, err := f.New(terminal)
		require.NoError(t, err)
		assert.IsType(t, &TN3270{}, s)
		assert.Equal(t, 1, *tn)
		assert.Equal(t, 0, *vt)
	})

	t.Run("VT100 with character stream", func(t *testing.T) {
		f, tn, vt := countingFactory(KindVT100, Capabilities{CharacterStream: true})
		s, err := f.New(terminal)
		require.NoError(t, err)
		assert.IsType(t, &VT100{}, s)
		assert.Equal(t, 0, *tn)
		assert.Equal(t, 1, *vt)
	})

	t.Run("VT100 without character stream", func(t *testing.T) {
		f, tn, vt := countingFactory(KindVT100, Capabilities{CharacterStream: false})

		assert.ErrorIs(t, f.Check(), domain.ErrUnsupportedEmulator)

		s, err := f.New(terminal)
		assert.Nil(t, s)
		assert.ErrorIs(t, err, domain.ErrUnsupportedEmulator)
		assert.Equal(t, 0, *tn)
		assert.Equal(t, 0, *vt)
	})

	t.Run("Unknown kind", func(t *testing.T) {
		f, tn, vt := countingFactory(Kind("5250"), Capabilities{CharacterStream: true})
		_, err := f.New(terminal)
		assert.ErrorIs(t, err, domain.ErrUnsupportedEmulator)
		assert.Equal(t, 0, *tn+*vt)
	})

	t.Run("No terminal", func(t *testing.T) {
		f, tn, _ := countingFactory(KindTN3270, Capabilities{})
		_, err := f.New(nil)
		assert.Error(t, err)
		assert.Equal(t, 0, *tn)
	})
}

func TestFactory_RealConstructors(t *testing.T) {
	terminal := &device.Terminal{Screen: device.NewBufferScreen(nil)}

	t.Run("Invalid encoding", func(t *testing.T) {
		f := NewFactory(KindTN3270, Capabilities{}, WithTN3270(TN3270Params{Encoding: "not-a-real-encoding"}))
		_, err := f.New(terminal)
		assert.True(t, domain.IsConfigError(err))
	})

	t.Run("Default profile", func(t *testing.T) {
		f := NewFactory(KindTN3270, Capabilities{}, WithTN3270(TN3270Params{Encoding: "ibm037"}))
		s, err := f.New(terminal)
		require.NoError(t, err)
		assert.Equal(t, TN3270EDefault, s.(*TN3270).params.Profile)
		assert.NotEmpty(t, s.ID())
	})

	t.Run("VT100 without command", func(t *testing.T) {
		f := NewFactory(KindVT100, Capabilities{CharacterStream: true})
		_, err := f.New(terminal)
		assert.True(t, domain.IsConfigError(err))
	})
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("TN3270")
	require.NoError(t, err)
	assert.Equal(t, KindTN3270, k)

	k, err = ParseKind("vt100")
	require.NoError(t, err)
	assert.Equal(t, KindVT100, k)

	_, err = ParseKind("ansi")
	assert.ErrorIs(t, err, domain.ErrUnsupportedEmulator)
}

func TestParseTN3270EProfile(t *testing.T) {
	for _, s := range []string{"off", "basic", "default", " Basic "} {
		_, err := ParseTN3270EProfile(s)
		assert.NoError(t, err, s)
	}

	_, err := ParseTN3270EProfile("full")
	assert.True(t, domain.IsConfigError(err))
}

func TestDetectCapabilities(t *testing.T) {
	assert.Equal(t, runtime.GOOS != "windows", DetectCapabilities().CharacterStream)
}
