package query

// Params is a set of values bound into a template. It is either positional (Args)
// or named (Parameters), never both.
type Params interface {
	lookupIndex(i int) (any, bool)
	lookupName(name string) (any, bool)
	named() bool
}

// Args holds positional values, referenced from templates as ?1, ?2, ...
type Args []any

// Positional is a shorthand for Args(values).
func Positional(values ...any) Args {
	return Args(values)
}

func (a Args) lookupIndex(i int) (any, bool) {
	if i < 1 || i > len(a) {
		return nil, false
	}
	return a[i-1], true
}

func (a Args) lookupName(string) (any, bool) { return nil, false }

func (a Args) named() bool { return false }

// Parameters holds named values, referenced from templates as :name.
//
//	query.With("name", "Ada").And("age", 30)
type Parameters map[string]any

// With starts a new Parameters set.
func With(name string, value any) Parameters {
	return Parameters{name: value}
}

// And adds a value and returns the same set.
func (p Parameters) And(name string, value any) Parameters {
	p[name] = value
	return p
}

// Map returns the underlying name/value mapping.
func (p Parameters) Map() map[string]any {
	return map[string]any(p)
}

func (p Parameters) lookupIndex(int) (any, bool) { return nil, false }

func (p Parameters) lookupName(name string) (any, bool) {
	v, ok := p[name]
	return v, ok
}

func (p Parameters) named() bool { return true }
