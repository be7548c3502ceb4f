package codepage

import (
	"testing"

	"github.com/aretw0/coaxterm/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

func TestValidate(t *testing.T) {
	t.Run("Accepts ibm037", func(t *testing.T) {
		name, err := Validate("ibm037")
		require.NoError(t, err)
		assert.Equal(t, "ibm037", name)
	})

	t.Run("Returns the name unchanged", func(t *testing.T) {
		name, err := Validate("CP1047")
		require.NoError(t, err)
		assert.Equal(t, "CP1047", name)
	})

	t.Run("Accepts IANA names", func(t *testing.T) {
		_, err := Validate("ISO-8859-1")
		assert.NoError(t, err)
	})

	t.Run("Rejects unknown names", func(t *testing.T) {
		_, err := Validate("not-a-real-encoding")
		require.Error(t, err)

		var ce *domain.ConfigError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "codepage", ce.Arg)
		assert.Equal(t, "not-a-real-encoding", ce.Value)
	})

	t.Run("Rejects empty name", func(t *testing.T) {
		_, err := Validate("  ")
		assert.True(t, domain.IsConfigError(err))
	})
}

func TestLookup_Default(t *testing.T) {
	enc, err := Lookup(Default)
	require.NoError(t, err)
	assert.Equal(t, charmap.CodePage037, enc)
}

func TestDecodeEncode(t *testing.T) {
	enc, err := Lookup("cp037")
	require.NoError(t, err)

	// "HELLO" in EBCDIC 037
	host := []byte{0xc8, 0xc5, 0xd3, 0xd3, 0xd6}

	text, err := Decode(enc, host)
	require.NoError(t, err)
	assert.Equal(t, "HELLO", text)

	back, err := Encode(enc, "HELLO")
	require.NoError(t, err)
	assert.Equal(t, host, back)
}

func TestLookup_Aliases(t *testing.T) {
	for name := range aliases {
		t.Run(name, func(t *testing.T) {
			enc, err := Lookup(name)
			require.NoError(t, err)
			assert.NotNil(t, enc)
		})
	}
}

func TestLookup_Spellings(t *testing.T) {
	tests := []struct {
		name string
		want encoding.Encoding
	}{
		{"ibm037", charmap.CodePage037},
		{"IBM037", charmap.CodePage037},
		{"ibm-037", charmap.CodePage037},
		{"ibm_037", charmap.CodePage037},
		{"cp1140", charmap.CodePage1140},
		{"cp1047", charmap.CodePage1047},
		{"utf8", unicode.UTF8},
		{"latin_1", charmap.ISO8859_1},
		{"iso8859_15", charmap.ISO8859_15},
		{"ISO_8859-1:1987", charmap.ISO8859_1},
		{"windows-1252", charmap.Windows1252},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := Lookup(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, enc)
		})
	}
}

func TestLookup_Unsupported(t *testing.T) {
	for _, name := range []string{"cp500", "ibm500", "cp273"} {
		t.Run(name, func(t *testing.T) {
			_, err := Lookup(name)
			assert.True(t, domain.IsConfigError(err))
		})
	}
}
