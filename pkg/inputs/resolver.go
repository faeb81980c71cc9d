package inputs

import (
	"sort"
	"time"

	"github.com/capiscio/openbadges/pkg/badge"
	"github.com/capiscio/openbadges/pkg/catalog"
)

// Resolved maps claim name to final value.
type Resolved map[string]string

// Names returns the resolved names in sorted order.
func (r Resolved) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schema is the compiled input schema of one badge.
type Schema struct {
	fields map[string]Field
}

// NewSchema compiles the inputs of b against the global input table.
// Badges with expires: true get an implicit, optional, date-typed "expires" input.
func NewSchema(b *catalog.Badge, globals map[string]*catalog.GlobalInput) (*Schema, error) {
	specs := make(map[string]*catalog.InputSpec, len(b.Inputs)+1)
	for name, spec := range b.Inputs {
		specs[name] = spec
	}
	if b.Expires {
		if _, ok := specs[badge.FieldExpires]; !ok {
			specs[badge.FieldExpires] = nil
		}
	}

	s := &Schema{fields: make(map[string]Field, len(specs))}
	for name, spec := range specs {
		f, err := Compile(name, spec, globals[name])
		if err != nil {
			return nil, err
		}
		s.fields[name] = f
	}
	return s, nil
}

// Field returns the compiled field with the given name.
func (s *Schema) Field(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Names returns every field name in sorted order.
func (s *Schema) Names() []string {
	names := make([]string, 0, len(s.fields))
	for name := range s.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UserNames returns the names of caller-settable fields in sorted order.
func (s *Schema) UserNames() []string {
	var names []string
	for _, name := range s.Names() {
		if s.fields[name].Kind == KindUserSupplied {
			names = append(names, name)
		}
	}
	return names
}

// Resolve produces the final claim values for one request.
//
// Fields are processed in name order so the reported error is stable when
// several inputs are wrong. Empty supplied values count as absent.
func (s *Schema) Resolve(supplied map[string]string, now time.Time) (Resolved, error) {
	for _, name := range sortedKeys(supplied) {
		f, ok := s.fields[name]
		if !ok {
			return nil, badge.Errorf(badge.ErrCodeUnknownInput, "input %q is not defined for this badge", name)
		}
		if f.Kind == KindStatic && supplied[name] != "" {
			return nil, badge.Errorf(badge.ErrCodeUnknownInput, "input %q cannot be set by the caller", name)
		}
	}

	out := make(Resolved, len(s.fields))
	for _, name := range s.Names() {
		value, ok, err := s.fields[name].resolve(supplied[name], now)
		if err != nil {
			return nil, err
		}
		if ok {
			out[name] = value
		}
	}
	return out, nil
}

func (f Field) resolve(user string, now time.Time) (string, bool, error) {
	if f.Kind == KindStatic {
		return f.fallback(now)
	}

	if user == "" {
		if f.Required && f.Fallback.Kind == FallbackNone {
			return "", false, badge.Errorf(badge.ErrCodeMissingRequiredInput, "required input %q was not provided", f.Name)
		}
		return f.fallback(now)
	}

	if f.Date {
		if _, err := badge.ParseTimestamp(user); err != nil {
			return "", false, badge.WrapError(badge.ErrCodeInvalidDateFormat,
				"input \""+f.Name+"\" has invalid date \""+user+"\"", err)
		}
	}
	return user, true, nil
}

func (f Field) fallback(now time.Time) (string, bool, error) {
	switch f.Fallback.Kind {
	case FallbackNow:
		return badge.FormatTimestamp(now), true, nil
	case FallbackStatic:
		return f.Fallback.Value, true, nil
	default:
		return "", false, nil
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
