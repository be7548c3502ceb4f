package keymap

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Key is a logical key. Printable keys are the character itself ("a", "1"),
// function keys are upper-case names ("ENTER", "PF1").
type Key string

// Local keys are handled by the controller and never reach a session.
const (
	KeyClicker     Key = "CLICKER"
	KeyCursorBlink Key = "CURSOR_BLINK"
	KeyAltCursor   Key = "ALT_CURSOR"

	// KeyShift latches shift for the next key.
	KeyShift Key = "SHIFT"
)

// IsLocal reports whether the key is handled by the controller itself.
func (k Key) IsLocal() bool {
	switch k {
	case KeyClicker, KeyCursorBlink, KeyAltCursor, KeyShift:
		return true
	}
	return false
}

// IsPrintable reports whether the key is a single character.
func (k Key) IsPrintable() bool {
	return len([]rune(string(k))) == 1
}

// Binding is a single table entry.
type Binding struct {
	Scan  uint8 `yaml:"scan"`
	Key   Key   `yaml:"key"`
	Shift bool  `yaml:"shift,omitempty"`
}

type tableFile struct {
	Name string    `yaml:"name"`
	Keys []Binding `yaml:"keys"`
}

// Keymap is an immutable scan code table.
type Keymap struct {
	name    string
	plain   map[uint8]Key
	shifted map[uint8]Key
}

// Name returns the keymap family name.
func (m *Keymap) Name() string {
	return m.name
}

// Lookup returns the key for a scan code. When shift is set and the table has
// no shifted entry the unshifted key is returned.
func (m *Keymap) Lookup(scan uint8, shift bool) (Key, bool) {
	if shift {
		if k, ok := m.shifted[scan]; ok {
			return k, true
		}
	}
	k, ok := m.plain[scan]
	return k, ok
}

// Len returns the number of bindings.
func (m *Keymap) Len() int {
	return len(m.plain) + len(m.shifted)
}

// Parse decodes a YAML keymap table.
func Parse(data []byte) (*Keymap, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse keymap: %w", err)
	}
	if f.Name == "" {
		return nil, fmt.Errorf("keymap has no name")
	}

	m := &Keymap{
		name:    f.Name,
		plain:   make(map[uint8]Key),
		shifted: make(map[uint8]Key),
	}
	for _, b := range f.Keys {
		if b.Key == "" {
			return nil, fmt.Errorf("keymap %s: scan code 0x%02x has no key", f.Name, b.Scan)
		}
		table := m.plain
		if b.Shift {
			table = m.shifted
		}
		if _, dup := table[b.Scan]; dup {
			return nil, fmt.Errorf("keymap %s: duplicate scan code 0x%02x", f.Name, b.Scan)
		}
		table[b.Scan] = b.Key
	}
	return m, nil
}

// Load reads a YAML keymap table from disk.
func Load(path string) (*Keymap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keymap: %w", err)
	}
	return Parse(data)
}
