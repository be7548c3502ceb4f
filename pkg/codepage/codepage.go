// Package codepage resolves host code page names to text encodings.
//
// Names are looked up in a table of codec-style aliases (cp037, ibm_1047, utf8)
// and then in the IANA character set index, case-insensitively. Only names that
// golang.org/x/text can actually encode are accepted, so EBCDIC pages it lacks,
// such as cp500 and cp273, are rejected.
package codepage

import (
	"fmt"
	"strings"

	"github.com/aretw0/coaxterm/pkg/domain"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// Default is the code page used when none is configured.
const Default = "ibm037"

// aliases maps codec-style names to encodings. Keys are compact: lower case with
// '-' and '_' removed, so cp037, IBM-037 and ibm_037 all match.
var aliases = map[string]encoding.Encoding{
	"cp037":       charmap.CodePage037,
	"ibm037":      charmap.CodePage037,
	"cp1047":      charmap.CodePage1047,
	"ibm1047":     charmap.CodePage1047,
	"cp1140":      charmap.CodePage1140,
	"ibm1140":     charmap.CodePage1140,
	"cp437":       charmap.CodePage437,
	"ibm437":      charmap.CodePage437,
	"cp850":       charmap.CodePage850,
	"ibm850":      charmap.CodePage850,
	"cp852":       charmap.CodePage852,
	"ibm852":      charmap.CodePage852,
	"cp855":       charmap.CodePage855,
	"ibm855":      charmap.CodePage855,
	"cp858":       charmap.CodePage858,
	"ibm858":      charmap.CodePage858,
	"cp860":       charmap.CodePage860,
	"ibm860":      charmap.CodePage860,
	"cp862":       charmap.CodePage862,
	"ibm862":      charmap.CodePage862,
	"cp863":       charmap.CodePage863,
	"ibm863":      charmap.CodePage863,
	"cp865":       charmap.CodePage865,
	"ibm865":      charmap.CodePage865,
	"cp866":       charmap.CodePage866,
	"ibm866":      charmap.CodePage866,
	"cp874":       charmap.Windows874,
	"cp1250":      charmap.Windows1250,
	"cp1251":      charmap.Windows1251,
	"cp1252":      charmap.Windows1252,
	"cp1253":      charmap.Windows1253,
	"cp1254":      charmap.Windows1254,
	"cp1255":      charmap.Windows1255,
	"cp1256":      charmap.Windows1256,
	"cp1257":      charmap.Windows1257,
	"cp1258":      charmap.Windows1258,
	"latin1":      charmap.ISO8859_1,
	"iso88591":    charmap.ISO8859_1,
	"iso88592":    charmap.ISO8859_2,
	"iso88595":    charmap.ISO8859_5,
	"iso88597":    charmap.ISO8859_7,
	"iso88599":    charmap.ISO8859_9,
	"iso885915":   charmap.ISO8859_15,
	"koi8r":       charmap.KOI8R,
	"koi8u":       charmap.KOI8U,
	"macroman":    charmap.Macintosh,
	"maccyrillic": charmap.MacintoshCyrillic,
	"utf8":        unicode.UTF8,
}

// Lookup returns the encoding registered under name.
func Lookup(name string) (encoding.Encoding, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, invalid(name, nil)
	}

	if enc, ok := aliases[compact(key)]; ok {
		return enc, nil
	}

	// IANA names use both separators (ISO_8859-1:1987), so try the name as given
	// before the codec spelling with '_' read as '-'.
	enc, err := ianaindex.IANA.Encoding(key)
	if err != nil {
		enc, err = ianaindex.IANA.Encoding(strings.ReplaceAll(key, "_", "-"))
	}
	if err != nil {
		return nil, invalid(name, err)
	}
	// ianaindex knows more names than x/text implements.
	if enc == nil {
		return nil, invalid(name, fmt.Errorf("encoding %q is not supported", name))
	}
	return enc, nil
}

func compact(key string) string {
	return strings.NewReplacer("-", "", "_", "").Replace(key)
}

// Validate checks that name resolves to a known encoding and returns it unchanged.
func Validate(name string) (string, error) {
	if _, err := Lookup(name); err != nil {
		return "", err
	}
	return name, nil
}

// Decode converts host bytes to a UTF-8 string.
func Decode(enc encoding.Encoding, data []byte) (string, error) {
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Encode converts a UTF-8 string to host bytes.
func Encode(enc encoding.Encoding, s string) ([]byte, error) {
	return enc.NewEncoder().Bytes([]byte(s))
}

func invalid(name string, err error) error {
	return &domain.ConfigError{Arg: "codepage", Value: name, Reason: "invalid encoding", Err: err}
}
