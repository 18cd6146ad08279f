package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeTagNames(t *testing.T) {
	assert.Equal(t, "Double", Double.String())
	assert.Equal(t, "UnsignedLongLong", UnsignedLongLong.String())
	assert.Equal(t, "Null", Null.String())
	assert.Equal(t, "TypeTag(99)", TypeTag(99).String())

	// Codes are part of the host contract.
	assert.Equal(t, 0, int(Unknown))
	assert.Equal(t, 12, int(Boolean))
	assert.Equal(t, 13, int(Double))
	assert.Equal(t, 15, int(Null))
}

func TestValueKind(t *testing.T) {
	assert.Equal(t, PayloadInt, Value{Tag: Boolean, Int: 1}.Kind())
	assert.Equal(t, PayloadReal, Value{Tag: Float, Real: 1}.Kind())
	assert.Equal(t, PayloadMatrix, Value{Tag: Double, IsArray: true, Matrix: [][]float64{{1, 2}}}.Kind())
	assert.Equal(t, PayloadNone, NullValue().Kind())
	assert.Equal(t, PayloadNone, Value{Tag: Unknown}.Kind())
}

func TestValueValidate(t *testing.T) {
	valid := []Value{
		NullValue(),
		{Tag: Unknown},
		{Tag: Long, Int: -3},
		{Tag: Double, Real: 2},
		{Tag: Double, IsArray: true, Matrix: [][]float64{{1, 2}, {3, 4}}},
	}
	for _, v := range valid {
		assert.NoError(t, v.Validate(), v.String())
	}

	invalid := []Value{
		{Tag: TypeTag(40)},
		{Tag: Long, IsArray: true, Matrix: [][]float64{{1}}},
		{Tag: Double, IsArray: true},
		{Tag: Double, IsArray: true, Matrix: [][]float64{{1, 2}, {3}}},
		{Tag: Double, Matrix: [][]float64{{1}}},
		{Tag: Null, Int: 4},
		{Tag: Short, Real: 1.5},
	}
	for _, v := range invalid {
		assert.Error(t, v.Validate(), "%#v", v)
	}
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "Long(7)", Value{Tag: Long, Int: 7}.String())
	assert.Equal(t, "Double(0.5)", Value{Tag: Double, Real: 0.5}.String())
	assert.Equal(t, "Double[2x2][1 2; 3 4]", Value{Tag: Double, IsArray: true, Matrix: [][]float64{{1, 2}, {3, 4}}}.String())
	assert.Equal(t, "Null", NullValue().String())
	assert.NotPanics(t, func() { _ = Value{Tag: Double, IsArray: true}.String() })
}
