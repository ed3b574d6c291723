package collector

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)

func TestCoerce_Defaults(t *testing.T) {
	a := Coerce(map[string]interface{}{}, fixedNow)

	assert.Equal(t, "2024-05-01 12:00:00", a.Ts)
	assert.Equal(t, "unknown", a.Src)
	assert.Equal(t, "unknown", a.Dst)
	assert.Equal(t, "unknown", a.PredictedClass)
	assert.Zero(t, a.Sport)
	assert.Zero(t, a.TotalBytes)
	assert.Nil(t, a.AttackScore)

	assert.Equal(t, a, Coerce(nil, fixedNow))
}

func TestCoerce_Integers(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want int64
	}{
		{"number", json.Number("443"), 443},
		{"float", 80.0, 80},
		{"fractional", json.Number("3.9"), 3},
		{"numeric string", " 8080 ", 8080},
		{"garbage string", "abc", 0},
		{"true", true, 1},
		{"false", false, 0},
		{"null", nil, 0},
		{"object", map[string]interface{}{"a": 1}, 0},
		{"list", []interface{}{1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Coerce(map[string]interface{}{"sport": tt.in}, fixedNow)
			assert.Equal(t, tt.want, a.Sport)
		})
	}
}

func TestCoerce_AttackScore(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want *float64
	}{
		{"number", json.Number("0.75"), ptr(0.75)},
		{"float", 0.5, ptr(0.5)},
		{"numeric string", "0.9", ptr(0.9)},
		{"garbage", "high", nil},
		{"nan string", "NaN", nil},
		{"null", nil, nil},
		{"bool", true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Coerce(map[string]interface{}{"attack_score": tt.in}, fixedNow)
			assert.Equal(t, tt.want, a.AttackScore)
		})
	}
}

func TestCoerce_KeepsProvidedValues(t *testing.T) {
	var raw map[string]interface{}
	require.NoError(t, decodeJSON([]byte(`{
		"ts": "2024-01-01 00:00:00", "src": "10.0.0.1", "dst": "10.0.0.2",
		"sport": 1234, "dport": 80, "proto": 6, "predicted_class": "suspicious",
		"packet_count": 3, "total_bytes": 450, "attack_score": 0.91
	}`), &raw))

	a := Coerce(raw, fixedNow)
	assert.Equal(t, "2024-01-01 00:00:00", a.Ts)
	assert.Equal(t, "10.0.0.1", a.Src)
	assert.EqualValues(t, 1234, a.Sport)
	assert.EqualValues(t, 450, a.TotalBytes)
	assert.Equal(t, "suspicious", a.PredictedClass)
	assert.Equal(t, ptr(0.91), a.AttackScore)
}

func ptr(f float64) *float64 { return &f }
