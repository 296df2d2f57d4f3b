package auth

import "testing"

func TestNormalizeBool(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want bool
	}{
		{"bool true", true, true},
		{"bool false", false, false},
		{"int one", 1, true},
		{"int zero", 0, false},
		{"int other", 2, false},
		{"int64 one", int64(1), true},
		{"int64 zero", int64(0), false},
		{"float64 one", float64(1), true},
		{"float64 zero", float64(0), false},
		{"float64 fraction", 0.5, false},
		{"string one", "1", true},
		{"string zero", "0", false},
		{"string true", "true", true},
		{"string false", "false", false},
		{"string garbage", "yes", false},
		{"bytes one", []byte("1"), true},
		{"bytes zero", []byte("0"), false},
		{"nil", nil, false},
		{"unknown type", struct{}{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeBool(tt.in); got != tt.want {
				t.Errorf("NormalizeBool(%#v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
