// Package inputs resolves the claim values of one badge request against the
// badge's declarative input schema.
//
// Catalog input specs are compiled once into Fields, a small tagged variant
// that makes the precedence rules explicit:
//
//	Static        input: false, value comes only from the catalog
//	UserSupplied  value comes from the caller, with an optional fallback
//
// and each Field carries a Fallback of None, Static(value) or Now.
package inputs

import (
	"github.com/capiscio/openbadges/pkg/badge"
	"github.com/capiscio/openbadges/pkg/catalog"
)

// Kind says where a field's value may come from.
type Kind int

const (
	// KindUserSupplied fields accept a caller value.
	KindUserSupplied Kind = iota

	// KindStatic fields are never caller-settable (input: false).
	KindStatic
)

func (k Kind) String() string {
	switch k {
	case KindStatic:
		return "static"
	default:
		return "user"
	}
}

// FallbackKind says how a field is filled when no caller value is present.
type FallbackKind int

const (
	// FallbackNone leaves the field unset.
	FallbackNone FallbackKind = iota

	// FallbackStatic uses a literal default.
	FallbackStatic

	// FallbackNow uses the current UTC time in badge.TimestampLayout.
	FallbackNow
)

// Fallback is the value used when the caller supplied nothing.
type Fallback struct {
	Kind  FallbackKind
	Value string
}

// Field is a compiled input spec.
type Field struct {
	Name        string
	Description string
	Kind        Kind
	Required    bool
	Date        bool
	Fallback    Fallback
}

// Compile merges a badge-level spec over the global definition of the same
// name and validates the result.
//
// default_now on a field that is not date-typed is always a configuration
// error, whatever else the spec says.
func Compile(name string, spec *catalog.InputSpec, global *catalog.GlobalInput) (Field, error) {
	if badge.ReservedFields[name] {
		return Field{}, badge.Errorf(badge.ErrCodeConfiguration, "input %q uses a reserved name", name)
	}
	if spec == nil {
		spec = &catalog.InputSpec{}
	}

	f := Field{
		Name:     name,
		Kind:     KindUserSupplied,
		Required: name != badge.FieldExpires,
		Date:     spec.Date || name == badge.FieldExpires,
	}

	var def *string
	defaultNow := spec.DefaultNow
	if global != nil {
		f.Description = global.Description
		f.Date = f.Date || global.Date
		def = global.Default
		defaultNow = defaultNow || global.DefaultNow
	}
	if spec.Description != "" {
		f.Description = spec.Description
	}
	if spec.Default != nil {
		def = spec.Default
	}
	if spec.Required != nil {
		f.Required = *spec.Required
	}
	if spec.Input != nil && !*spec.Input {
		f.Kind = KindStatic
		f.Required = false
	}

	switch {
	case defaultNow:
		if !f.Date {
			return Field{}, badge.Errorf(badge.ErrCodeConfiguration, "input %q sets default_now but is not a date field", name)
		}
		f.Fallback = Fallback{Kind: FallbackNow}
	case def != nil:
		f.Fallback = Fallback{Kind: FallbackStatic, Value: *def}
	}

	if f.Date && f.Fallback.Kind == FallbackStatic {
		if _, err := badge.ParseTimestamp(f.Fallback.Value); err != nil {
			return Field{}, badge.WrapError(badge.ErrCodeConfiguration,
				"input \""+name+"\" has a default that is not a valid timestamp", err)
		}
	}

	return f, nil
}
