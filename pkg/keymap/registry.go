package keymap

import (
	"embed"
	"fmt"
	"strings"
	"sync"
)

// Keymap family names. They double as the description prefixes Select matches on.
const (
	Typewriter3278 = "3278-TYPEWRITER"
	IBMTypewriter  = "IBM-TYPEWRITER"
	IBMEnhanced    = "IBM-ENHANCED"
)

//go:embed tables/*.yaml
var tables embed.FS

// selection is checked in order; the first entry is also the default.
var selection = []struct {
	prefix string
	name   string
}{
	{prefix: "3278", name: Typewriter3278},
	{prefix: "IBM-TYPEWRITER", name: IBMTypewriter},
	{prefix: "IBM-ENHANCED", name: IBMEnhanced},
}

// Registry holds the keymaps available for selection.
type Registry struct {
	mu   sync.RWMutex
	maps map[string]*Keymap
}

// NewRegistry returns a registry preloaded with the built-in keymaps.
func NewRegistry() *Registry {
	r := &Registry{maps: make(map[string]*Keymap)}
	for name, m := range builtins() {
		r.maps[name] = m
	}
	return r
}

// Register adds or replaces a keymap under its own name.
func (r *Registry) Register(m *Keymap) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maps[m.Name()] = m
}

// LoadFiles registers every keymap file in paths.
func (r *Registry) LoadFiles(paths ...string) error {
	for _, path := range paths {
		m, err := Load(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		r.Register(m)
	}
	return nil
}

// Get returns the keymap registered under name.
func (r *Registry) Get(name string) (*Keymap, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.maps[name]
	return m, ok
}

// Select returns the keymap for a keyboard description. It never fails: an
// unrecognized description gets the 3278 typewriter keymap.
func (r *Registry) Select(description string) *Keymap {
	name := selection[0].name
	for _, s := range selection {
		if strings.HasPrefix(description, s.prefix) {
			name = s.name
			break
		}
	}

	if m, ok := r.Get(name); ok {
		return m
	}
	return builtins()[name]
}

// Select picks a built-in keymap for a keyboard description.
func Select(description string) *Keymap {
	return defaultRegistry().Select(description)
}

var defaultRegistry = sync.OnceValue(NewRegistry)

var builtins = sync.OnceValue(func() map[string]*Keymap {
	maps := make(map[string]*Keymap)
	for _, s := range selection {
		file := "tables/" + strings.ToLower(s.name) + ".yaml"
		data, err := tables.ReadFile(file)
		if err != nil {
			panic(fmt.Sprintf("keymap: missing built-in table %s: %v", file, err))
		}
		m, err := Parse(data)
		if err != nil {
			panic(fmt.Sprintf("keymap: invalid built-in table %s: %v", file, err))
		}
		maps[m.Name()] = m
	}
	return maps
})
