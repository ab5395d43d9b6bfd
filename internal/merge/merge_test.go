package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeepMergeNestedObjects(t *testing.T) {
	dst := map[string]any{
		"44": map[string]any{"NumberOfLaps": float64(1), "Sectors": map[string]any{"0": map[string]any{"Value": "24.1"}}},
	}
	src := map[string]any{
		"44": map[string]any{"Sectors": map[string]any{"1": map[string]any{"Value": "27.1"}}},
	}
	got := Deep(dst, src)

	driver := got["44"].(map[string]any)
	assert.Equal(t, float64(1), driver["NumberOfLaps"], "NumberOfLaps lost after merge")
	sectors := driver["Sectors"].(map[string]any)
	assert.Len(t, sectors, 2, "expected sectors 0 and 1 to coexist")
}

func TestDeepMergeListOverwritesObject(t *testing.T) {
	dst := map[string]any{"Stints": map[string]any{"0": "soft"}}
	src := map[string]any{"Stints": []any{"soft", "medium"}}
	got := Deep(dst, src)

	_, isMap := got["Stints"].(map[string]any)
	require.False(t, isMap, "expected list to overwrite object, object survived")
	list, ok := got["Stints"].([]any)
	require.True(t, ok)
	assert.Len(t, list, 2)
}

func TestDeepMergeObjectOverwritesList(t *testing.T) {
	dst := map[string]any{"X": []any{1, 2, 3}}
	src := map[string]any{"X": map[string]any{"a": 1}}
	got := Deep(dst, src)

	_, isList := got["X"].([]any)
	assert.False(t, isList, "expected object to overwrite list")
}

func TestDeepMergeScalarOverwrite(t *testing.T) {
	dst := map[string]any{"Status": "Green"}
	src := map[string]any{"Status": "Yellow"}
	got := Deep(dst, src)
	assert.Equal(t, "Yellow", got["Status"])
}

func TestDeepMergeFoldEqualsLeftFold(t *testing.T) {
	updates := []map[string]any{
		{"a": map[string]any{"x": float64(1)}},
		{"a": map[string]any{"y": float64(2)}},
		{"a": map[string]any{"x": float64(9)}},
	}
	dst := map[string]any{}
	for _, u := range updates {
		dst = Deep(dst, u)
	}
	want := map[string]any{"a": map[string]any{"x": float64(9), "y": float64(2)}}
	assert.Equal(t, want, dst, "folded merge should equal left-fold of deep-merge over the update sequence")
}

func TestClone(t *testing.T) {
	src := map[string]any{"a": []any{map[string]any{"b": 1}}}
	cloned := Clone(src).(map[string]any)

	inner := cloned["a"].([]any)[0].(map[string]any)
	inner["b"] = 999

	original := src["a"].([]any)[0].(map[string]any)
	assert.Equal(t, 1, original["b"], "mutating the clone should not affect the original tree")
}
