package lite

import (
	"fmt"
	"math"

	"github.com/maxpert/mxbridge/mx"
)

type builtin func(args []*value) (*value, error)

var builtins map[string]builtin

func init() {
	builtins = map[string]builtin{
		"zeros":   filled(0),
		"ones":    filled(1),
		"eye":     eye,
		"true":    logicalFill(1),
		"false":   logicalFill(0),
		"pi":      constant(math.Pi),
		"Inf":     constant(math.Inf(1)),
		"inf":     constant(math.Inf(1)),
		"NaN":     constant(math.NaN()),
		"nan":     constant(math.NaN()),
		"eps":     constant(math.Nextafter(1, 2) - 1),
		"size":    size,
		"numel":   numel,
		"sum":     sum,
		"class":   className,
		"logical": converter(mx.LogicalClass),
		"char":    converter(mx.CharClass),
	}
	for _, class := range []mx.ClassID{
		mx.DoubleClass, mx.SingleClass,
		mx.Int8Class, mx.Uint8Class, mx.Int16Class, mx.Uint16Class,
		mx.Int32Class, mx.Uint32Class, mx.Int64Class, mx.Uint64Class,
	} {
		builtins[class.String()] = converter(class)
	}
}

func callBuiltin(name string, args []*value) (*value, error) {
	if name == "disp" {
		return nil, fmt.Errorf("Too many output arguments.")
	}
	fn, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("Undefined function or variable '%s'.", name)
	}
	return fn(args)
}

func scalarArg(v *value, fn string) (float64, error) {
	if !v.isScalar() || v.class == mx.CharClass {
		return 0, fmt.Errorf("%s: size arguments must be real scalars", fn)
	}
	return v.data[0], nil
}

// sizeArgs decodes (), (n), ([r c]), (r, c) and an optional trailing class
// name such as zeros(2, 3, 'int8').
func sizeArgs(fn string, args []*value, allowClass bool) (rows, cols int, class mx.ClassID, err error) {
	class = mx.DoubleClass
	if n := len(args); n > 0 && args[n-1].class == mx.CharClass {
		if !allowClass {
			return 0, 0, 0, fmt.Errorf("%s: class argument is not supported", fn)
		}
		name := string(runesOf(args[n-1]))
		c, ok := mx.ClassByName(name)
		if !ok || !c.IsNumeric() || c == mx.CharClass || c == mx.LogicalClass {
			return 0, 0, 0, fmt.Errorf("%s: unsupported class '%s'", fn, name)
		}
		class = c
		args = args[:n-1]
	}

	clamp := func(x float64) int {
		if x < 0 || math.IsNaN(x) {
			return 0
		}
		return int(x)
	}
	switch len(args) {
	case 0:
		return 1, 1, class, nil
	case 1:
		v := args[0]
		if v.numel() == 2 && v.class != mx.CharClass {
			return clamp(v.data[0]), clamp(v.data[1]), class, nil
		}
		n, err := scalarArg(v, fn)
		if err != nil {
			return 0, 0, 0, err
		}
		return clamp(n), clamp(n), class, nil
	case 2:
		r, err := scalarArg(args[0], fn)
		if err != nil {
			return 0, 0, 0, err
		}
		c, err := scalarArg(args[1], fn)
		if err != nil {
			return 0, 0, 0, err
		}
		return clamp(r), clamp(c), class, nil
	}
	return 0, 0, 0, fmt.Errorf("%s: only 2-D sizes are supported", fn)
}

func filled(x float64) builtin {
	return func(args []*value) (*value, error) {
		rows, cols, class, err := sizeArgs("zeros/ones", args, true)
		if err != nil {
			return nil, err
		}
		out := newValue(class, rows, cols)
		for i := range out.data {
			out.data[i] = x
		}
		return out, nil
	}
}

func logicalFill(x float64) builtin {
	return func(args []*value) (*value, error) {
		rows, cols, _, err := sizeArgs("true/false", args, false)
		if err != nil {
			return nil, err
		}
		out := newValue(mx.LogicalClass, rows, cols)
		for i := range out.data {
			out.data[i] = x
		}
		return out, nil
	}
}

func identity(class mx.ClassID, rows, cols int) *value {
	out := newValue(class, rows, cols)
	for i := 0; i < min(rows, cols); i++ {
		out.data[mx.LinearOffset(i, i, rows)] = 1
	}
	return out
}

func eye(args []*value) (*value, error) {
	rows, cols, class, err := sizeArgs("eye", args, true)
	if err != nil {
		return nil, err
	}
	return identity(class, rows, cols), nil
}

func constant(x float64) builtin {
	return func(args []*value) (*value, error) {
		if len(args) != 0 {
			return nil, fmt.Errorf("Too many input arguments.")
		}
		return scalar(x), nil
	}
}

func converter(class mx.ClassID) builtin {
	return func(args []*value) (*value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%s expects exactly one argument", class)
		}
		return args[0].cast(class)
	}
}

func size(args []*value) (*value, error) {
	switch len(args) {
	case 1:
		out := newValue(mx.DoubleClass, 1, 2)
		out.data[0], out.data[1] = float64(args[0].rows), float64(args[0].cols)
		return out, nil
	case 2:
		d, err := scalarArg(args[1], "size")
		if err != nil {
			return nil, err
		}
		switch {
		case d == 1:
			return scalar(float64(args[0].rows)), nil
		case d == 2:
			return scalar(float64(args[0].cols)), nil
		case d > 2 && d == math.Trunc(d):
			return scalar(1), nil
		}
		return nil, fmt.Errorf("Dimension argument must be a positive integer scalar.")
	}
	return nil, fmt.Errorf("size expects one or two arguments")
}

func numel(args []*value) (*value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("numel expects exactly one argument")
	}
	return scalar(float64(args[0].numel())), nil
}

// sum adds the elements of a vector, or each column of a matrix.
func sum(args []*value) (*value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("sum expects exactly one argument")
	}
	x := args[0]
	class := x.class
	if !isInteger(class) && class != mx.SingleClass {
		class = mx.DoubleClass
	}
	if x.isEmpty() {
		return newValue(class, 1, 1), nil
	}
	if x.rows == 1 || x.cols == 1 {
		var total float64
		for _, v := range x.data {
			total += v
		}
		out := newValue(class, 1, 1)
		out.data[0] = castElement(class, total)
		return out, nil
	}
	out := newValue(class, 1, x.cols)
	for c := 0; c < x.cols; c++ {
		var total float64
		for r := 0; r < x.rows; r++ {
			total += x.at(r, c)
		}
		out.data[c] = castElement(class, total)
	}
	return out, nil
}

func className(args []*value) (*value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("class expects exactly one argument")
	}
	return charValue(args[0].class.String()), nil
}

// runesOf reads the characters of a char row in column-major order.
func runesOf(v *value) []rune {
	out := make([]rune, len(v.data))
	for i, x := range v.data {
		out[i] = rune(x)
	}
	return out
}
