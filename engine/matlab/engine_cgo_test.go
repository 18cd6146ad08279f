//go:build matlab && cgo

package matlab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxpert/mxbridge/mx"
)

func openEngine(t *testing.T) *Conn {
	t.Helper()
	if !Available() {
		t.Skip(LibraryName + " not found on LD_LIBRARY_PATH")
	}
	c, err := New().Open("")
	require.NoError(t, err)
	conn := c.(*Conn)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestEngineRange(t *testing.T) {
	c := openEngine(t)
	c.SetOutputCapture(8192)

	require.NoError(t, c.Eval("D = 1:5"))
	assert.Contains(t, c.Output(), "D =")

	a, err := c.GetVariable("D")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, mx.DoubleClass, a.ClassID())
	assert.Equal(t, []int{1, 5}, a.Dimensions())
	assert.Equal(t, 5.0, mx.Float64At(a.Data(), 4))
}

func TestEnginePutMatrix(t *testing.T) {
	c := openEngine(t)

	m, err := c.NewDoubleMatrix(2, 3)
	require.NoError(t, err)
	defer m.Destroy()
	for i, v := range []float64{1, 4, 2, 5, 3, 6} {
		m.Set(i, v)
	}
	require.NoError(t, c.PutVariable("M", m))
	require.NoError(t, c.Eval("s = sum(M(:));"))

	a, err := c.GetVariable("s")
	require.NoError(t, err)
	assert.Equal(t, 21.0, mx.Float64At(a.Data(), 0))

	a, err = c.GetVariable("no_such_variable")
	require.NoError(t, err)
	assert.Nil(t, a)
}
