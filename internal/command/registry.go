package command

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Lookup for names that are not registered.
var ErrNotFound = errors.New("command not found")

// Registry is an immutable, ordered command table.
type Registry struct {
	entries []Entry
	index   map[string]int
}

// NewRegistry validates entries and builds a Registry. All problems are
// reported together.
func NewRegistry(entries ...Entry) (*Registry, error) {
	r := &Registry{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}

	var errs []error
	for i, e := range entries {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("entry %d: empty command name", i))
			continue
		}
		if _, dup := r.index[e.Name]; dup {
			errs = append(errs, fmt.Errorf("command %q: registered twice", e.Name))
			continue
		}
		if e.Handler == nil {
			errs = append(errs, fmt.Errorf("command %q: no handler", e.Name))
		}
		if e.Capabilities.RequiresControlDir && e.Capabilities.RequiresControlDirGently {
			errs = append(errs, fmt.Errorf("command %q: RequiresControlDir and RequiresControlDirGently are mutually exclusive", e.Name))
		}
		r.index[e.Name] = len(r.entries)
		r.entries = append(r.entries, e)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

// MustRegistry is NewRegistry for static tables; it panics on error.
func MustRegistry(entries ...Entry) *Registry {
	r, err := NewRegistry(entries...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the entry registered under exactly name.
func (r *Registry) Lookup(name string) (Entry, error) {
	i, ok := r.index[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return r.entries[i], nil
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.Name
	}
	return names
}

// Entries returns a copy of the table in registration order.
func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Len returns the number of commands.
func (r *Registry) Len() int {
	return len(r.entries)
}
