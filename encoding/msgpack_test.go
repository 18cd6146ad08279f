package encoding

import (
	"math"
	"reflect"
	"sync"
	"testing"
)

type hostValue struct {
	Tag     int         `msgpack:"tag" json:"tag"`
	IsArray bool        `msgpack:"is_array" json:"is_array"`
	Int     int64       `msgpack:"int,omitempty" json:"int,omitempty"`
	Real    float64     `msgpack:"real,omitempty" json:"real,omitempty"`
	Matrix  [][]float64 `msgpack:"matrix,omitempty" json:"matrix,omitempty"`
}

func TestMarshal_Basic(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
	}{
		{"string", "x = 1:5"},
		{"int", 12345},
		{"float64", 3.14159},
		{"bool", true},
		{"matrix", [][]float64{{1, 2, 3}, {4, 5, 6}}},
		{"value", hostValue{Tag: 13, IsArray: true, Matrix: [][]float64{{1, 2}}}},
		{"map", map[string]interface{}{"command": "y = x'", "result": "y"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, err := Marshal(tc.input)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if len(data) == 0 {
				t.Error("Expected non-empty result")
			}
		})
	}
}

func TestMarshal_RoundTripValue(t *testing.T) {
	tests := []hostValue{
		{Tag: 13, Real: 2.5},
		{Tag: 8, Int: -70000},
		{Tag: 11, Int: -1},
		{Tag: 13, IsArray: true, Matrix: [][]float64{{1, 2, 3}, {4, 5, 6}}},
		{Tag: 15},
	}

	for _, in := range tests {
		data, err := Marshal(in)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		var out hostValue
		if err := Unmarshal(data, &out); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if !reflect.DeepEqual(in, out) {
			t.Errorf("Round trip mismatch: got %+v, want %+v", out, in)
		}
	}
}

// msgpack carries non-finite reals, which JSON cannot.
func TestMarshal_NonFinite(t *testing.T) {
	in := [][]float64{{math.NaN(), math.Inf(1), math.Inf(-1)}}

	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var out [][]float64
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !math.IsNaN(out[0][0]) || !math.IsInf(out[0][1], 1) || !math.IsInf(out[0][2], -1) {
		t.Errorf("Non-finite values lost: %v", out)
	}
}

func TestMarshal_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	numGoroutines := 50
	iterations := 200

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				in := hostValue{Tag: 8, Int: int64(id*iterations + j)}
				data, err := Marshal(in)
				if err != nil {
					t.Errorf("Marshal failed: %v", err)
					return
				}
				var out hostValue
				if err := Unmarshal(data, &out); err != nil {
					t.Errorf("Unmarshal failed: %v", err)
					return
				}
				// Pooled buffers must never leak between callers.
				if !reflect.DeepEqual(out, in) {
					t.Errorf("Got %+v, want %+v", out, in)
					return
				}
			}
		}(i)
	}

	wg.Wait()
}

func TestUnmarshal_StringNotBytes(t *testing.T) {
	original := "result_matrix"
	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var result interface{}
	if err := Unmarshal(data, &result); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	str, ok := result.(string)
	if !ok {
		t.Fatalf("Expected string type, got %T", result)
	}
	if str != original {
		t.Errorf("String mismatch: got %q, want %q", str, original)
	}
}

func TestUnmarshal_MapWithStrings(t *testing.T) {
	original := map[string]interface{}{
		"command": "A = eye(3);",
		"result":  "A",
	}
	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var result interface{}
	if err := Unmarshal(data, &result); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	m, ok := result.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected map[string]interface{}, got %T", result)
	}

	for key, val := range m {
		if _, ok := val.(string); !ok {
			t.Errorf("Value for key %q is %T, expected string", key, val)
		}
	}
}

func BenchmarkMarshal(b *testing.B) {
	m := make([][]float64, 32)
	for i := range m {
		m[i] = make([]float64, 32)
	}
	data := hostValue{Tag: 13, IsArray: true, Matrix: m}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Marshal(data)
	}
}
