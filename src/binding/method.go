// Package binding turns JSON calls into typed native invocations. Methods are
// described once, at startup, as typed invoker closures collected in a Table;
// the Dispatcher resolves an owner instance through the capability registry,
// binds and coerces the arguments and runs the closure.
package binding

import (
	"github.com/RAIL-Suite/RAIL-sub001/src/manifest"
)

// MaxArgs is the largest parameter count a bound method may declare. Methods
// needing more should accept a single object parameter.
const MaxArgs = 6

// Void is the result reported for methods without a return value.
const Void = "void"

type invokeFunc func(recv any, args []any) (any, error)

// Method is one entry of the capability table.
type Method struct {
	Name        string
	Description string
	Params      []ParamSpec

	invoke invokeFunc
}

// WithDescription returns a copy of m carrying text as its description.
func (m Method) WithDescription(text string) Method {
	m.Description = text
	return m
}

// Tool renders the method as a manifest tool owned by owner.
func (m Method) Tool(owner string) manifest.Tool {
	params := make([]manifest.Parameter, 0, len(m.Params))
	for _, p := range m.Params {
		params = append(params, p.parameter())
	}
	return manifest.Tool{
		Name:        m.Name,
		Description: m.Description,
		Owner:       owner,
		Parameters:  manifest.ObjectSchema(params),
	}
}

// Func0 binds a method returning a value and no arguments.
func Func0[R, Out any](name string, fn func(R) (Out, error)) Method {
	return Method{Name: name, invoke: func(recv any, _ []any) (any, error) {
		r, err := receiver[R](name, recv)
		if err != nil {
			return nil, err
		}
		out, err := fn(r)
		return out, err
	}}
}

// Func1 binds a one-argument method returning a value.
func Func1[R, A1, Out any](name string, fn func(R, A1) (Out, error), p1 ParamSpec) Method {
	params := []ParamSpec{withKind[A1](p1)}
	return Method{Name: name, Params: params, invoke: func(recv any, args []any) (any, error) {
		r, err := receiver[R](name, recv)
		if err != nil {
			return nil, err
		}
		a1, err := arg[A1](params, args, 0)
		if err != nil {
			return nil, err
		}
		out, err := fn(r, a1)
		return out, err
	}}
}

// Func2 binds a two-argument method returning a value.
func Func2[R, A1, A2, Out any](name string, fn func(R, A1, A2) (Out, error), p1, p2 ParamSpec) Method {
	params := []ParamSpec{withKind[A1](p1), withKind[A2](p2)}
	return Method{Name: name, Params: params, invoke: func(recv any, args []any) (any, error) {
		r, err := receiver[R](name, recv)
		if err != nil {
			return nil, err
		}
		a1, err := arg[A1](params, args, 0)
		if err != nil {
			return nil, err
		}
		a2, err := arg[A2](params, args, 1)
		if err != nil {
			return nil, err
		}
		out, err := fn(r, a1, a2)
		return out, err
	}}
}

// Func3 binds a three-argument method returning a value.
func Func3[R, A1, A2, A3, Out any](name string, fn func(R, A1, A2, A3) (Out, error), p1, p2, p3 ParamSpec) Method {
	params := []ParamSpec{withKind[A1](p1), withKind[A2](p2), withKind[A3](p3)}
	return Method{Name: name, Params: params, invoke: func(recv any, args []any) (any, error) {
		r, err := receiver[R](name, recv)
		if err != nil {
			return nil, err
		}
		a1, err := arg[A1](params, args, 0)
		if err != nil {
			return nil, err
		}
		a2, err := arg[A2](params, args, 1)
		if err != nil {
			return nil, err
		}
		a3, err := arg[A3](params, args, 2)
		if err != nil {
			return nil, err
		}
		out, err := fn(r, a1, a2, a3)
		return out, err
	}}
}

// Func4 binds a four-argument method returning a value.
func Func4[R, A1, A2, A3, A4, Out any](name string, fn func(R, A1, A2, A3, A4) (Out, error), p1, p2, p3, p4 ParamSpec) Method {
	params := []ParamSpec{withKind[A1](p1), withKind[A2](p2), withKind[A3](p3), withKind[A4](p4)}
	return Method{Name: name, Params: params, invoke: func(recv any, args []any) (any, error) {
		r, err := receiver[R](name, recv)
		if err != nil {
			return nil, err
		}
		a1, err := arg[A1](params, args, 0)
		if err != nil {
			return nil, err
		}
		a2, err := arg[A2](params, args, 1)
		if err != nil {
			return nil, err
		}
		a3, err := arg[A3](params, args, 2)
		if err != nil {
			return nil, err
		}
		a4, err := arg[A4](params, args, 3)
		if err != nil {
			return nil, err
		}
		out, err := fn(r, a1, a2, a3, a4)
		return out, err
	}}
}

// Func5 binds a five-argument method returning a value.
func Func5[R, A1, A2, A3, A4, A5, Out any](name string, fn func(R, A1, A2, A3, A4, A5) (Out, error), p1, p2, p3, p4, p5 ParamSpec) Method {
	params := []ParamSpec{withKind[A1](p1), withKind[A2](p2), withKind[A3](p3), withKind[A4](p4), withKind[A5](p5)}
	return Method{Name: name, Params: params, invoke: func(recv any, args []any) (any, error) {
		r, err := receiver[R](name, recv)
		if err != nil {
			return nil, err
		}
		a1, err := arg[A1](params, args, 0)
		if err != nil {
			return nil, err
		}
		a2, err := arg[A2](params, args, 1)
		if err != nil {
			return nil, err
		}
		a3, err := arg[A3](params, args, 2)
		if err != nil {
			return nil, err
		}
		a4, err := arg[A4](params, args, 3)
		if err != nil {
			return nil, err
		}
		a5, err := arg[A5](params, args, 4)
		if err != nil {
			return nil, err
		}
		out, err := fn(r, a1, a2, a3, a4, a5)
		return out, err
	}}
}

// Func6 binds a six-argument method returning a value.
func Func6[R, A1, A2, A3, A4, A5, A6, Out any](name string, fn func(R, A1, A2, A3, A4, A5, A6) (Out, error), p1, p2, p3, p4, p5, p6 ParamSpec) Method {
	params := []ParamSpec{withKind[A1](p1), withKind[A2](p2), withKind[A3](p3), withKind[A4](p4), withKind[A5](p5), withKind[A6](p6)}
	return Method{Name: name, Params: params, invoke: func(recv any, args []any) (any, error) {
		r, err := receiver[R](name, recv)
		if err != nil {
			return nil, err
		}
		a1, err := arg[A1](params, args, 0)
		if err != nil {
			return nil, err
		}
		a2, err := arg[A2](params, args, 1)
		if err != nil {
			return nil, err
		}
		a3, err := arg[A3](params, args, 2)
		if err != nil {
			return nil, err
		}
		a4, err := arg[A4](params, args, 3)
		if err != nil {
			return nil, err
		}
		a5, err := arg[A5](params, args, 4)
		if err != nil {
			return nil, err
		}
		a6, err := arg[A6](params, args, 5)
		if err != nil {
			return nil, err
		}
		out, err := fn(r, a1, a2, a3, a4, a5, a6)
		return out, err
	}}
}

// Proc0 binds a method without arguments or return value.
func Proc0[R any](name string, fn func(R) error) Method {
	return Func0(name, func(r R) (string, error) { return Void, fn(r) })
}

// Proc1 binds a one-argument method without a return value.
func Proc1[R, A1 any](name string, fn func(R, A1) error, p1 ParamSpec) Method {
	return Func1(name, func(r R, a1 A1) (string, error) { return Void, fn(r, a1) }, p1)
}

// Proc2 binds a two-argument method without a return value.
func Proc2[R, A1, A2 any](name string, fn func(R, A1, A2) error, p1, p2 ParamSpec) Method {
	return Func2(name, func(r R, a1 A1, a2 A2) (string, error) { return Void, fn(r, a1, a2) }, p1, p2)
}

// Proc3 binds a three-argument method without a return value.
func Proc3[R, A1, A2, A3 any](name string, fn func(R, A1, A2, A3) error, p1, p2, p3 ParamSpec) Method {
	return Func3(name, func(r R, a1 A1, a2 A2, a3 A3) (string, error) {
		return Void, fn(r, a1, a2, a3)
	}, p1, p2, p3)
}

// Proc4 binds a four-argument method without a return value.
func Proc4[R, A1, A2, A3, A4 any](name string, fn func(R, A1, A2, A3, A4) error, p1, p2, p3, p4 ParamSpec) Method {
	return Func4(name, func(r R, a1 A1, a2 A2, a3 A3, a4 A4) (string, error) {
		return Void, fn(r, a1, a2, a3, a4)
	}, p1, p2, p3, p4)
}

// Proc5 binds a five-argument method without a return value.
func Proc5[R, A1, A2, A3, A4, A5 any](name string, fn func(R, A1, A2, A3, A4, A5) error, p1, p2, p3, p4, p5 ParamSpec) Method {
	return Func5(name, func(r R, a1 A1, a2 A2, a3 A3, a4 A4, a5 A5) (string, error) {
		return Void, fn(r, a1, a2, a3, a4, a5)
	}, p1, p2, p3, p4, p5)
}

// Proc6 binds a six-argument method without a return value.
func Proc6[R, A1, A2, A3, A4, A5, A6 any](name string, fn func(R, A1, A2, A3, A4, A5, A6) error, p1, p2, p3, p4, p5, p6 ParamSpec) Method {
	return Func6(name, func(r R, a1 A1, a2 A2, a3 A3, a4 A4, a5 A5, a6 A6) (string, error) {
		return Void, fn(r, a1, a2, a3, a4, a5, a6)
	}, p1, p2, p3, p4, p5, p6)
}
