package stage

import (
	"fmt"
	"regexp"
)

// ParamType is the declared type of a single named parameter.
type ParamType int

const (
	ParamString ParamType = iota
	ParamNumber
	ParamBoolean
)

func (t ParamType) String() string {
	switch t {
	case ParamString:
		return "string"
	case ParamNumber:
		return "number"
	case ParamBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// secretPattern flags parameter names that must never appear unredacted in
// a log line or the -S status table (spec §4.4).
var secretPattern = regexp.MustCompile(`(?i)key|secret|token|password`)

// IsSecret reports whether name matches the redaction pattern.
func IsSecret(name string) bool { return secretPattern.MatchString(name) }

// ParamDef declares one named, optionally positional, parameter a stage
// accepts.
type ParamDef struct {
	Name string
	Type ParamType

	// Positional is the zero-based index into a constructor's positional
	// argument list this parameter also binds from, or -1 if it is
	// options-only.
	Positional int

	Default any

	// Validate, if set, rejects a parsed value with a descriptive error.
	Validate func(value any) error
}

// Secret reports whether this parameter's name looks like a credential.
func (d ParamDef) Secret() bool { return IsSecret(d.Name) }

// Schema is the ordered set of parameters a stage type declares.
type Schema []ParamDef

// Params is a parsed, validated parameter set, keyed by name.
type Params map[string]any

// Parse binds options (named) and positional (ordered) arguments against
// the schema: options win over positional when both supply the same name,
// defaults fill anything neither supplies, and every value is passed
// through its validator (if any) before being returned.
func (s Schema) Parse(options map[string]any, positional []any) (Params, error) {
	out := make(Params, len(s))
	for _, def := range s {
		value, has := options[def.Name]
		if !has && def.Positional >= 0 && def.Positional < len(positional) {
			value = positional[def.Positional]
			has = true
		}
		if !has {
			value = def.Default
		}
		if err := checkType(def, value); err != nil {
			return nil, err
		}
		if def.Validate != nil {
			if err := def.Validate(value); err != nil {
				return nil, fmt.Errorf("parameter %q: %w", def.Name, err)
			}
		}
		out[def.Name] = value
	}
	return out, nil
}

func checkType(def ParamDef, value any) error {
	if value == nil {
		return nil
	}
	switch def.Type {
	case ParamString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("parameter %q: want string, got %T", def.Name, value)
		}
	case ParamNumber:
		switch value.(type) {
		case int, int64, float64, float32:
		default:
			return fmt.Errorf("parameter %q: want number, got %T", def.Name, value)
		}
	case ParamBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("parameter %q: want boolean, got %T", def.Name, value)
		}
	}
	return nil
}

// String returns params[name] as a string, or "" if absent or of another type.
func (p Params) String(name string) string {
	v, _ := p[name].(string)
	return v
}

// Bool returns params[name] as a bool, or false if absent or of another type.
func (p Params) Bool(name string) bool {
	v, _ := p[name].(bool)
	return v
}

// Number returns params[name] as a float64, converting the common numeric
// kinds Parse accepts; returns 0 if absent or unconvertible.
func (p Params) Number(name string) float64 {
	switch v := p[name].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// Redacted returns a copy of p with every secret-shaped value replaced by a
// fixed placeholder, for logging or the -S status table.
func (p Params) Redacted() Params {
	out := make(Params, len(p))
	for k, v := range p {
		if IsSecret(k) {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = v
	}
	return out
}
