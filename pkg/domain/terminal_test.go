package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTerminalID(t *testing.T) {
	tests := []struct {
		name     string
		value    byte
		want     TerminalID
		wantErr  bool
	}{
		{name: "CUT model 2", value: 0b0000_0100, want: TerminalID{Type: TerminalTypeCUT, Model: 2}},
		{name: "CUT model 3 with keyboard", value: 0b0100_0110, want: TerminalID{Type: TerminalTypeCUT, Model: 3, Keyboard: 0x4}},
		{name: "CUT model 4", value: 0b0000_1110, want: TerminalID{Type: TerminalTypeCUT, Model: 4}},
		{name: "CUT model 5", value: 0b0000_1100, want: TerminalID{Type: TerminalTypeCUT, Model: 5}},
		{name: "DFT", value: 0x01, want: TerminalID{Type: TerminalTypeDFT}},
		{name: "Invalid model", value: 0b0000_0000, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTerminalID(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtendedID(t *testing.T) {
	t.Run("Absent", func(t *testing.T) {
		id := ParseExtendedID(nil)
		assert.False(t, id.Present())
		assert.Equal(t, "", id.ModelCode())
		assert.Equal(t, "<none>", id.String())
	})

	t.Run("Model code is characters 2 through 5", func(t *testing.T) {
		id := ParseExtendedID([]byte{0xc1, 0x34, 0x83, 0x00})
		assert.True(t, id.Present())
		assert.Equal(t, ExtendedID("c1348300"), id)
		assert.Equal(t, "3483", id.ModelCode())
	})

	t.Run("Keyboard type", func(t *testing.T) {
		kb, ok := ExtendedID("c1348302").KeyboardType()
		require.True(t, ok)
		assert.Equal(t, byte(0x02), kb)

		_, ok = ExtendedID("c134").KeyboardType()
		assert.False(t, ok)
	})
}

func TestFeatures_String(t *testing.T) {
	f := Features{FeatureEAB: 7, Feature(0x11): 3}
	assert.Equal(t, "{0x11@3, EAB@7}", f.String())
	assert.True(t, f.Has(FeatureEAB))
	assert.Equal(t, "{}", Features{}.String())
}

func TestHostTarget(t *testing.T) {
	assert.Equal(t, "host:23", HostTarget{Host: "host", Port: 23}.String())
	assert.Equal(t, "a,b@host:992", HostTarget{Host: "host", Port: 992, LUNames: []string{"a", "b"}}.String())
	assert.Equal(t, "[::1]:23", HostTarget{Host: "::1", Port: 23}.Addr())
}

func TestConfigError(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("parse: %w", &ConfigError{Arg: "host", Value: "x", Reason: "invalid port", Err: cause})

	assert.True(t, IsConfigError(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "argument host: invalid port: x")
	assert.False(t, IsConfigError(cause))
}
