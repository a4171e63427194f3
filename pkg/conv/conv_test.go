package conv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigGet(t *testing.T) {
	m := map[string]any{
		"name":    "hot",
		"limit":   20,
		"ratio":   0.5,
		"timeout": "250ms",
		"seconds": 2,
		"ids":     []any{"a", 7, 3.0, true},
	}

	assert.Equal(t, "hot", ConfigGet(m, "name", ""))
	assert.Equal(t, "fallback", ConfigGet(m, "missing", "fallback"))
	assert.Equal(t, "", ConfigGet(m, "limit", ""), "type mismatch falls back")

	assert.Equal(t, 20, ConfigGetInt(m, "limit", 0))
	assert.Equal(t, 0, ConfigGetInt(m, "ratio", 1), "floats are truncated")
	assert.Equal(t, 5, ConfigGetInt(m, "missing", 5))

	assert.Equal(t, 250*time.Millisecond, ConfigGetDuration(m, "timeout", 0))
	assert.Equal(t, 2*time.Second, ConfigGetDuration(m, "seconds", 0))
	assert.Equal(t, time.Minute, ConfigGetDuration(m, "missing", time.Minute))

	assert.Equal(t, []string{"a", "7", "3", "1"}, SliceAnyToString(m["ids"]))
	assert.Nil(t, SliceAnyToString(nil))
}

func TestToFloat64(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{1.5, 1.5, true},
		{float32(2), 2, true},
		{3, 3, true},
		{int64(4), 4, true},
		{false, 0, true},
		{"5", 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := ToFloat64(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}
