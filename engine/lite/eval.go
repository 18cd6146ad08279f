package lite

import (
	"errors"
	"fmt"
	"math"

	"github.com/maxpert/mxbridge/mx"
)

var (
	errDimensionMismatch = errors.New("Matrix dimensions must agree.")
	errConcatMismatch    = errors.New("Dimensions of arrays being concatenated are not consistent.")
	errBadSubscript      = errors.New("Subscript indices must either be real positive integers or logicals.")
	errIndexOutOfRange   = errors.New("Index exceeds matrix dimensions.")
)

// exec runs one statement against the connection workspace.
func (c *Conn) exec(st statement) error {
	switch st.kind {
	case stmtCommand:
		return c.command(st.cmd, st.args)

	case stmtAssign:
		v, err := c.eval(st.x)
		if err != nil {
			return err
		}
		if err := c.store(st.target, v); err != nil {
			return err
		}
		if st.echo {
			c.write(formatAssign(st.target, v))
		}
		return nil
	}

	if call, ok := st.x.(*callExpr); ok && call.name == "disp" && !c.bound("disp") {
		if len(call.args) != 1 {
			return fmt.Errorf("disp expects exactly one argument")
		}
		v, err := c.eval(call.args[0])
		if err != nil {
			return err
		}
		c.write(formatDisp(v))
		return nil
	}

	// Naming a variable displays it without touching ans.
	if id, ok := st.x.(*identExpr); ok && c.bound(id.name) {
		if !st.echo {
			return nil
		}
		v, err := c.lookup(id.name)
		if err != nil {
			return err
		}
		c.write(formatAssign(id.name, v))
		return nil
	}

	v, err := c.eval(st.x)
	if err != nil {
		return err
	}
	if err := c.store("ans", v); err != nil {
		return err
	}
	if st.echo {
		c.write(formatAssign("ans", v))
	}
	return nil
}

func (c *Conn) command(cmd string, args []string) error {
	switch cmd {
	case "clear":
		if len(args) == 0 {
			c.clearAll()
			return nil
		}
		for _, name := range args {
			if name == "all" || name == "variables" {
				c.clearAll()
				continue
			}
			if a, ok := c.vars[name]; ok {
				a.Destroy()
				delete(c.vars, name)
			}
		}
	case "close", "clc":
		// No figures or command window to act on.
	}
	return nil
}

func (c *Conn) eval(e expr) (*value, error) {
	switch e := e.(type) {
	case *numberLit:
		return scalar(e.val), nil
	case *stringLit:
		return charValue(e.val), nil
	case *identExpr:
		if c.bound(e.name) {
			return c.lookup(e.name)
		}
		return callBuiltin(e.name, nil)
	case *callExpr:
		args := make([]*value, 0, len(e.args))
		for _, a := range e.args {
			v, err := c.eval(a)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
		if c.bound(e.name) {
			target, err := c.lookup(e.name)
			if err != nil {
				return nil, err
			}
			return index(target, args)
		}
		return callBuiltin(e.name, args)
	case *unaryExpr:
		x, err := c.eval(e.x)
		if err != nil {
			return nil, err
		}
		return negate(e.op, x), nil
	case *binaryExpr:
		l, err := c.eval(e.l)
		if err != nil {
			return nil, err
		}
		r, err := c.eval(e.r)
		if err != nil {
			return nil, err
		}
		return binary(e.op, l, r)
	case *rangeExpr:
		return c.evalRange(e)
	case *transposeExpr:
		x, err := c.eval(e.x)
		if err != nil {
			return nil, err
		}
		return x.transpose(), nil
	case *matrixLit:
		return c.evalMatrix(e)
	}
	return nil, fmt.Errorf("unsupported expression %T", e)
}

// arithClass picks the result class of an arithmetic operation. Logical
// and char operands behave as double.
func arithClass(a, b mx.ClassID) (mx.ClassID, error) {
	norm := func(c mx.ClassID) mx.ClassID {
		if c == mx.LogicalClass || c == mx.CharClass {
			return mx.DoubleClass
		}
		return c
	}
	a, b = norm(a), norm(b)
	switch {
	case isInteger(a) && isInteger(b):
		if a != b {
			return 0, fmt.Errorf("Integers can only be combined with integers of the same class, or scalar doubles.")
		}
		return a, nil
	case isInteger(a):
		return a, nil
	case isInteger(b):
		return b, nil
	case a == mx.SingleClass || b == mx.SingleClass:
		return mx.SingleClass, nil
	}
	return mx.DoubleClass, nil
}

func broadcastDim(a, b int) (int, error) {
	switch {
	case a == b:
		return a, nil
	case a == 1:
		return b, nil
	case b == 1:
		return a, nil
	}
	return 0, errDimensionMismatch
}

func elementwise(a, b *value, fn func(x, y float64) float64) (*value, error) {
	class, err := arithClass(a.class, b.class)
	if err != nil {
		return nil, err
	}
	rows, err := broadcastDim(a.rows, b.rows)
	if err != nil {
		return nil, err
	}
	cols, err := broadcastDim(a.cols, b.cols)
	if err != nil {
		return nil, err
	}
	out := newValue(class, rows, cols)
	for r := 0; r < rows; r++ {
		for col := 0; col < cols; col++ {
			x := a.at(min(r, a.rows-1), min(col, a.cols-1))
			y := b.at(min(r, b.rows-1), min(col, b.cols-1))
			out.data[mx.LinearOffset(r, col, rows)] = castElement(class, fn(x, y))
		}
	}
	return out, nil
}

func binary(op string, a, b *value) (*value, error) {
	switch op {
	case "+":
		return elementwise(a, b, func(x, y float64) float64 { return x + y })
	case "-":
		return elementwise(a, b, func(x, y float64) float64 { return x - y })
	case ".*":
		return elementwise(a, b, func(x, y float64) float64 { return x * y })
	case "./":
		return elementwise(a, b, func(x, y float64) float64 { return x / y })
	case ".^":
		return elementwise(a, b, math.Pow)
	case "*":
		if a.isScalar() || b.isScalar() {
			return elementwise(a, b, func(x, y float64) float64 { return x * y })
		}
		return matmul(a, b)
	case "/":
		if !b.isScalar() {
			return nil, fmt.Errorf("matrix right division requires a scalar divisor")
		}
		return elementwise(a, b, func(x, y float64) float64 { return x / y })
	case "^":
		return mpower(a, b)
	}
	return nil, fmt.Errorf("unsupported operator %q", op)
}

func matmul(a, b *value) (*value, error) {
	class, err := arithClass(a.class, b.class)
	if err != nil {
		return nil, err
	}
	if isInteger(class) {
		return nil, fmt.Errorf("MTIMES (*) is not fully supported for integer data types. At least one input must be scalar.")
	}
	if a.cols != b.rows {
		return nil, fmt.Errorf("Inner matrix dimensions must agree.")
	}
	out := newValue(class, a.rows, b.cols)
	for r := 0; r < a.rows; r++ {
		for col := 0; col < b.cols; col++ {
			var sum float64
			for k := 0; k < a.cols; k++ {
				sum += a.at(r, k) * b.at(k, col)
			}
			out.data[mx.LinearOffset(r, col, out.rows)] = castElement(class, sum)
		}
	}
	return out, nil
}

func mpower(a, b *value) (*value, error) {
	if a.isScalar() && b.isScalar() {
		return elementwise(a, b, math.Pow)
	}
	n := 0.0
	if b.isScalar() {
		n = b.data[0]
	}
	if !b.isScalar() || a.rows != a.cols || n < 0 || n != math.Trunc(n) {
		return nil, fmt.Errorf("Inputs must be a scalar and a square matrix.")
	}
	result := identity(a.class, a.rows, a.cols)
	if a.class == mx.LogicalClass || a.class == mx.CharClass {
		result.class = mx.DoubleClass
	}
	for i := 0; i < int(n); i++ {
		var err error
		if result, err = matmul(result, a); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func negate(op string, x *value) *value {
	class := x.class
	if class == mx.LogicalClass || class == mx.CharClass {
		class = mx.DoubleClass
	}
	out := newValue(class, x.rows, x.cols)
	for i, v := range x.data {
		if op == "-" {
			v = -v
		}
		out.data[i] = castElement(class, v)
	}
	return out
}

func (c *Conn) evalRange(e *rangeExpr) (*value, error) {
	parts := []expr{e.start, e.stop}
	if e.step != nil {
		parts = []expr{e.start, e.step, e.stop}
	}
	vals := make([]*value, len(parts))
	class := mx.DoubleClass
	for i, p := range parts {
		v, err := c.eval(p)
		if err != nil {
			return nil, err
		}
		if v.isEmpty() {
			return newValue(mx.DoubleClass, 1, 0), nil
		}
		if class, err = arithClass(class, v.class); err != nil {
			return nil, err
		}
		vals[i] = v
	}

	start, step, stop := vals[0].data[0], 1.0, vals[len(vals)-1].data[0]
	if e.step != nil {
		step = vals[1].data[0]
	}
	if math.IsNaN(start) || math.IsNaN(step) || math.IsNaN(stop) {
		return scalar(math.NaN()), nil
	}
	if step == 0 || (step > 0 && start > stop) || (step < 0 && start < stop) {
		return newValue(class, 1, 0), nil
	}
	count := (stop - start) / step
	if math.IsInf(count, 0) || count > 1<<31 {
		return nil, fmt.Errorf("Maximum variable size allowed by the program is exceeded.")
	}
	n := int(math.Floor(count+1e-10)) + 1
	out := newValue(class, 1, n)
	for i := range out.data {
		out.data[i] = castElement(class, start+float64(i)*step)
	}
	return out, nil
}

// concatClass follows the engine's concatenation rules: integers win,
// then single, then char; logical survives only if every part is logical.
func concatClass(parts []*value) mx.ClassID {
	allLogical := len(parts) > 0
	var hasSingle, hasChar bool
	for _, p := range parts {
		if isInteger(p.class) {
			return p.class
		}
		switch p.class {
		case mx.SingleClass:
			hasSingle = true
		case mx.CharClass:
			hasChar = true
		}
		if p.class != mx.LogicalClass {
			allLogical = false
		}
	}
	switch {
	case hasSingle:
		return mx.SingleClass
	case hasChar:
		return mx.CharClass
	case allLogical:
		return mx.LogicalClass
	}
	return mx.DoubleClass
}

func hconcat(parts []*value) (*value, error) {
	var kept []*value
	for _, p := range parts {
		if !p.isEmpty() {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return newValue(concatClass(parts), 0, 0), nil
	}
	class := concatClass(kept)
	rows, cols := kept[0].rows, 0
	for _, p := range kept {
		if p.rows != rows {
			return nil, errConcatMismatch
		}
		cols += p.cols
	}
	out := newValue(class, rows, cols)
	off := 0
	for _, p := range kept {
		for i, x := range p.data {
			out.data[off+i] = castElement(class, x)
		}
		off += len(p.data)
	}
	return out, nil
}

func vconcat(parts []*value) (*value, error) {
	var kept []*value
	for _, p := range parts {
		if !p.isEmpty() {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return newValue(concatClass(parts), 0, 0), nil
	}
	class := concatClass(kept)
	rows, cols := 0, kept[0].cols
	for _, p := range kept {
		if p.cols != cols {
			return nil, errConcatMismatch
		}
		rows += p.rows
	}
	out := newValue(class, rows, cols)
	r0 := 0
	for _, p := range kept {
		for r := 0; r < p.rows; r++ {
			for col := 0; col < cols; col++ {
				out.data[mx.LinearOffset(r0+r, col, rows)] = castElement(class, p.at(r, col))
			}
		}
		r0 += p.rows
	}
	return out, nil
}

func (c *Conn) evalMatrix(e *matrixLit) (*value, error) {
	if len(e.rows) == 0 {
		return newValue(mx.DoubleClass, 0, 0), nil
	}
	rows := make([]*value, 0, len(e.rows))
	for _, row := range e.rows {
		parts := make([]*value, 0, len(row))
		for _, x := range row {
			v, err := c.eval(x)
			if err != nil {
				return nil, err
			}
			parts = append(parts, v)
		}
		joined, err := hconcat(parts)
		if err != nil {
			return nil, err
		}
		rows = append(rows, joined)
	}
	return vconcat(rows)
}

func subscripts(v *value, limit int) ([]int, error) {
	out := make([]int, len(v.data))
	for i, x := range v.data {
		if x < 1 || x != math.Trunc(x) {
			return nil, errBadSubscript
		}
		if int(x) > limit {
			return nil, errIndexOutOfRange
		}
		out[i] = int(x) - 1
	}
	return out, nil
}

// index reads target(i) or target(i, j) with numeric subscripts.
func index(target *value, args []*value) (*value, error) {
	switch len(args) {
	case 1:
		idx, err := subscripts(args[0], target.numel())
		if err != nil {
			return nil, err
		}
		rows, cols := args[0].rows, args[0].cols
		// A vector indexed by a vector keeps the orientation of the source.
		if (target.rows == 1 || target.cols == 1) && (rows == 1 || cols == 1) {
			if target.rows == 1 {
				rows, cols = 1, len(idx)
			} else {
				rows, cols = len(idx), 1
			}
		}
		out := newValue(target.class, rows, cols)
		for i, k := range idx {
			out.data[i] = target.data[k]
		}
		return out, nil
	case 2:
		ri, err := subscripts(args[0], target.rows)
		if err != nil {
			return nil, err
		}
		ci, err := subscripts(args[1], target.cols)
		if err != nil {
			return nil, err
		}
		out := newValue(target.class, len(ri), len(ci))
		for c, col := range ci {
			for r, row := range ri {
				out.data[mx.LinearOffset(r, c, out.rows)] = target.at(row, col)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("only one or two subscripts are supported")
}
