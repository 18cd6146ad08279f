package lite

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/maxpert/mxbridge/mx"
)

// formatAssign renders the console echo of "name = value".
func formatAssign(name string, v *value) string {
	var sb strings.Builder
	sb.WriteString(name)
	sb.WriteString(" =\n\n")
	if v.isEmpty() {
		sb.WriteString("     []\n\n")
		return sb.String()
	}
	if v.class == mx.CharClass {
		for _, row := range charRows(v) {
			sb.WriteString("    '")
			sb.WriteString(row)
			sb.WriteString("'\n")
		}
		sb.WriteString("\n")
		return sb.String()
	}
	for _, line := range numericRows(v) {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteString("\n")
	return sb.String()
}

// formatDisp renders a value the way disp prints it: rows only.
func formatDisp(v *value) string {
	if v.isEmpty() {
		return ""
	}
	rows := numericRows
	if v.class == mx.CharClass {
		rows = charRows
	}
	var sb strings.Builder
	for _, line := range rows(v) {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func charRows(v *value) []string {
	out := make([]string, v.rows)
	for r := range out {
		var sb strings.Builder
		for c := 0; c < v.cols; c++ {
			sb.WriteRune(rune(v.at(r, c)))
		}
		out[r] = sb.String()
	}
	return out
}

func numericRows(v *value) []string {
	cells, width := formatCells(v)
	out := make([]string, v.rows)
	for r := range out {
		var sb strings.Builder
		for c := 0; c < v.cols; c++ {
			fmt.Fprintf(&sb, "%*s", width, cells[mx.LinearOffset(r, c, v.rows)])
		}
		out[r] = sb.String()
	}
	return out
}

// formatCells chooses one notation for the whole array and returns the
// rendered elements with a common field width.
func formatCells(v *value) ([]string, int) {
	integral := true
	maxAbs := 0.0
	for _, x := range v.data {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		if x != math.Trunc(x) {
			integral = false
		}
		maxAbs = max(maxAbs, math.Abs(x))
	}
	if maxAbs >= 1e10 {
		integral = false
	}

	verb, prec := byte('f'), 0
	if !integral {
		prec = 4
		if maxAbs >= 1e5 || (maxAbs > 0 && maxAbs < 1e-3) {
			verb = 'e'
		}
	}

	cells := make([]string, len(v.data))
	longest := 0
	for i, x := range v.data {
		var s string
		switch {
		case math.IsNaN(x):
			s = "NaN"
		case math.IsInf(x, 1):
			s = "Inf"
		case math.IsInf(x, -1):
			s = "-Inf"
		default:
			s = strconv.FormatFloat(x, verb, prec, 64)
		}
		cells[i] = s
		longest = max(longest, len(s))
	}

	switch {
	case isInteger(v.class) || v.class == mx.LogicalClass:
		return cells, longest + 2
	case integral:
		return cells, max(longest+3, 6)
	}
	return cells, longest + 4
}
