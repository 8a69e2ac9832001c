// Package sig models the declared parameter list of a tracked function and
// binds call-time arguments against it. Go offers no reflection over
// parameter names, so the signature is declared explicitly once and reused
// for every call.
package sig

import (
	"errors"
	"fmt"
)

// ErrBind is wrapped by every argument binding failure.
var ErrBind = errors.New("sig: cannot bind arguments")

// Param describes one declared parameter.
type Param struct {
	Name        string
	KeywordOnly bool
	Default     any
	HasDefault  bool
}

// Required declares a parameter that must be supplied by the caller.
func Required(name string) Param {
	return Param{Name: name}
}

// Optional declares a parameter with a default value.
func Optional(name string, def any) Param {
	return Param{Name: name, Default: def, HasDefault: true}
}

// Keyword marks a parameter as bindable by name only.
func (p Param) Keyword() Param {
	p.KeywordOnly = true
	return p
}

// Signature is an ordered list of parameter descriptors.
type Signature struct {
	params []Param
	index  map[string]int
}

// New builds a signature from an ordered parameter list.
func New(params ...Param) (*Signature, error) {
	s := &Signature{
		params: make([]Param, 0, len(params)),
		index:  make(map[string]int, len(params)),
	}
	sawDefault := false
	sawKeywordOnly := false
	for _, p := range params {
		if p.Name == "" {
			return nil, errors.New("sig: parameter name must not be empty")
		}
		if _, dup := s.index[p.Name]; dup {
			return nil, fmt.Errorf("sig: duplicate parameter %q", p.Name)
		}
		if p.KeywordOnly {
			sawKeywordOnly = true
		}
		if !p.KeywordOnly {
			if sawKeywordOnly {
				return nil, fmt.Errorf(
					"sig: positional parameter %q follows a keyword-only one", p.Name)
			}
			if p.HasDefault {
				sawDefault = true
			} else if sawDefault {
				return nil, fmt.Errorf(
					"sig: required positional parameter %q follows a defaulted one", p.Name)
			}
		}
		s.index[p.Name] = len(s.params)
		s.params = append(s.params, p)
	}
	return s, nil
}

// MustNew is like New but panics on error. Intended for declarations.
func MustNew(params ...Param) *Signature {
	s, err := New(params...)
	if err != nil {
		panic(err)
	}
	return s
}

// Has reports whether the signature declares a parameter with this name.
func (s *Signature) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Names returns the declared parameter names in order.
func (s *Signature) Names() []string {
	names := make([]string, len(s.params))
	for i, p := range s.params {
		names[i] = p.Name
	}
	return names
}

// Bind maps positional and keyword arguments onto the signature, applying
// defaults for anything the caller omitted. Every failure wraps ErrBind.
func (s *Signature) Bind(positional []any, keyword map[string]any) (*BoundArgs, error) {
	bound := newBoundArgs(s)

	positionalSlots := 0
	for _, p := range s.params {
		if !p.KeywordOnly {
			positionalSlots++
		}
	}
	if len(positional) > positionalSlots {
		return nil, fmt.Errorf("%w: takes %d positional arguments but %d were given",
			ErrBind, positionalSlots, len(positional))
	}

	seen := make(map[string]bool, len(s.params))
	for i, v := range positional {
		name := s.params[i].Name
		bound.set(name, v)
		seen[name] = true
	}

	for name, v := range keyword {
		idx, ok := s.index[name]
		if !ok {
			return nil, fmt.Errorf("%w: unexpected keyword argument %q", ErrBind, name)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: multiple values for argument %q", ErrBind, name)
		}
		bound.set(s.params[idx].Name, v)
		seen[name] = true
	}

	for _, p := range s.params {
		if seen[p.Name] {
			continue
		}
		if !p.HasDefault {
			return nil, fmt.Errorf("%w: missing required argument %q", ErrBind, p.Name)
		}
		bound.set(p.Name, p.Default)
	}

	return bound, nil
}

// BoundArgs is the ordered, mutable result of binding a call against a
// signature. Mutations before invocation are how directory and seed values
// are injected.
type BoundArgs struct {
	names  []string
	values map[string]any
}

func newBoundArgs(s *Signature) *BoundArgs {
	return &BoundArgs{
		names:  s.Names(),
		values: make(map[string]any, len(s.params)),
	}
}

func (b *BoundArgs) set(name string, v any) {
	b.values[name] = v
}

// Get returns the bound value for a declared parameter.
func (b *BoundArgs) Get(name string) (any, bool) {
	v, ok := b.values[name]
	return v, ok
}

// Set overwrites the bound value of a declared parameter. Unknown names are
// rejected so injection targets cannot silently miss.
func (b *BoundArgs) Set(name string, v any) error {
	if _, ok := b.values[name]; !ok {
		return fmt.Errorf("sig: no bound parameter %q", name)
	}
	b.values[name] = v
	return nil
}

// Names returns the parameter names in declaration order.
func (b *BoundArgs) Names() []string {
	names := make([]string, len(b.names))
	copy(names, b.names)
	return names
}

// Each visits the bound values in declaration order.
func (b *BoundArgs) Each(fn func(name string, value any)) {
	for _, name := range b.names {
		fn(name, b.values[name])
	}
}
