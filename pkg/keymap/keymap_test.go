package keymap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		description string
		want        string
	}{
		{description: "3278-2", want: Typewriter3278},
		{description: "3278", want: Typewriter3278},
		{description: "IBM-TYPEWRITER-3483", want: IBMTypewriter},
		{description: "IBM-ENHANCED", want: IBMEnhanced},
		{description: "IBM-ENHANCED-122", want: IBMEnhanced},
		{description: "UNKNOWN-07", want: Typewriter3278},
		{description: "", want: Typewriter3278},
		{description: "ibm-enhanced", want: Typewriter3278}, // case-sensitive
		{description: "X3278", want: Typewriter3278},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			m := Select(tt.description)
			require.NotNil(t, m)
			assert.Equal(t, tt.want, m.Name())
		})
	}
}

func TestBuiltins(t *testing.T) {
	for _, name := range []string{Typewriter3278, IBMTypewriter, IBMEnhanced} {
		t.Run(name, func(t *testing.T) {
			m, ok := NewRegistry().Get(name)
			require.True(t, ok)
			assert.Greater(t, m.Len(), 50)

			// Every family carries the controller's local clicker key.
			found := false
			for scan := 0; scan < 256; scan++ {
				if k, ok := m.Lookup(uint8(scan), false); ok && k == KeyClicker {
					found = true
				}
			}
			assert.True(t, found, "no CLICKER binding")
		})
	}
}

func TestKeymap_Lookup(t *testing.T) {
	m := Select("3278")

	k, ok := m.Lookup(0x21, false)
	require.True(t, ok)
	assert.Equal(t, Key("1"), k)

	k, ok = m.Lookup(0x21, true)
	require.True(t, ok)
	assert.Equal(t, Key("|"), k)

	// Falls back to the unshifted key
	k, ok = m.Lookup(0x60, true)
	require.True(t, ok)
	assert.Equal(t, Key("a"), k)

	_, ok = m.Lookup(0xff, false)
	assert.False(t, ok)
}

func TestKey(t *testing.T) {
	assert.True(t, KeyClicker.IsLocal())
	assert.False(t, Key("ENTER").IsLocal())
	assert.True(t, Key("¢").IsPrintable())
	assert.False(t, Key("PF1").IsPrintable())
}

func TestParse_Errors(t *testing.T) {
	t.Run("Missing name", func(t *testing.T) {
		_, err := Parse([]byte("keys: []"))
		assert.Error(t, err)
	})

	t.Run("Duplicate scan code", func(t *testing.T) {
		_, err := Parse([]byte("name: X\nkeys:\n  - {scan: 1, key: a}\n  - {scan: 1, key: b}\n"))
		assert.ErrorContains(t, err, "duplicate scan code")
	})

	t.Run("Empty key", func(t *testing.T) {
		_, err := Parse([]byte("name: X\nkeys:\n  - {scan: 1}\n"))
		assert.ErrorContains(t, err, "has no key")
	})

	t.Run("Invalid YAML", func(t *testing.T) {
		_, err := Parse([]byte("name: [unterminated"))
		assert.Error(t, err)
	})
}

func TestRegistry_LoadFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	err := os.WriteFile(path, []byte("name: IBM-ENHANCED\nkeys:\n  - {scan: 0x5a, key: ENTER}\n"), 0644)
	require.NoError(t, err)

	r := NewRegistry()
	require.NoError(t, r.LoadFiles(path))

	m := r.Select("IBM-ENHANCED")
	assert.Equal(t, 1, m.Len())

	// The package-level selector keeps the built-in table.
	assert.Greater(t, Select("IBM-ENHANCED").Len(), 1)

	err = r.LoadFiles(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
