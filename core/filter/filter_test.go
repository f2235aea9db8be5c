package filter

import (
	"testing"

	"cuebase/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileTextOperators(t *testing.T) {
	conds, args := Compile([]model.Filter{
		{Field: "artist", Op: model.OpIs, Value: "Bicep"},
		{Field: "title", Op: model.OpContains, Value: "glue"},
		{Field: "label", Op: model.OpIsNot, Value: "Ninja Tune"},
	})

	require.Len(t, conds, 3)
	assert.Equal(t, "LOWER(t.artist) = LOWER(?)", conds[0])
	assert.Equal(t, "t.title LIKE ? ESCAPE '\\'", conds[1])
	assert.Equal(t, "LOWER(t.label) <> LOWER(?)", conds[2])
	assert.Equal(t, []interface{}{"Bicep", "%glue%", "Ninja Tune"}, args)
}

func TestCompileBpmUsesOverride(t *testing.T) {
	conds, args := Compile([]model.Filter{
		{Field: "bpm", Op: model.OpRange, From: "125", To: "130"},
	})

	require.Len(t, conds, 1)
	assert.Equal(t, "COALESCE(t.bpm_override, t.bpm) BETWEEN ? AND ?", conds[0])
	assert.Equal(t, []interface{}{125.0, 130.0}, args)

	expr, ok := SortExpr("bpm")
	require.True(t, ok)
	assert.Equal(t, "COALESCE(t.bpm_override, t.bpm)", expr)
}

func TestCompileNumberComparisons(t *testing.T) {
	conds, args := Compile([]model.Filter{
		{Field: "year", Op: model.OpGte, Value: "2010"},
		{Field: "rating", Op: model.OpIs, Value: "5"},
		{Field: "loudness", Op: model.OpLt, Value: "-8.5"},
	})

	require.Len(t, conds, 3)
	assert.Equal(t, "t.year >= ?", conds[0])
	assert.Equal(t, "t.rating = ?", conds[1])
	assert.Equal(t, "t.loudness < ?", conds[2])
	assert.Equal(t, []interface{}{2010.0, 5.0, -8.5}, args)
}

func TestCompileKeyMatches(t *testing.T) {
	conds, args := Compile([]model.Filter{
		{Field: "key", Op: model.OpMatches, Value: "8A"},
	})

	require.Len(t, conds, 1)
	assert.Equal(t, "t.key_camelot IN (?, ?, ?, ?)", conds[0])
	assert.ElementsMatch(t, []interface{}{"8a", "8b", "7a", "9a"}, args)
}

func TestCompileKeyAdjacentWraps(t *testing.T) {
	conds, args := Compile([]model.Filter{
		{Field: "key", Op: model.OpAdjacent, Value: "1a"},
	})

	require.Len(t, conds, 1)
	assert.Equal(t, "t.key_camelot IN (?, ?)", conds[0])
	assert.ElementsMatch(t, []interface{}{"12a", "2a"}, args)
}

func TestCompileKeyUnparseableFallsBackToLiteral(t *testing.T) {
	conds, args := Compile([]model.Filter{
		{Field: "key", Op: model.OpMatches, Value: "C# Minor"},
	})

	require.Len(t, conds, 1)
	assert.Equal(t, "LOWER(t.key_camelot) = LOWER(?)", conds[0])
	assert.Equal(t, []interface{}{"C# Minor"}, args)
}

func TestCompileGenreMembership(t *testing.T) {
	conds, args := Compile([]model.Filter{
		{Field: "genre", Op: model.OpIs, Value: "House"},
		{Field: "genre", Op: model.OpIsNot, Value: "Pop"},
	})

	require.Len(t, conds, 2)
	assert.Contains(t, conds[0], "json_each(t.genres)")
	assert.Contains(t, conds[1], "NOT EXISTS")
	assert.Equal(t, []interface{}{"House", "Pop"}, args)
}

func TestInvalidFiltersAreDropped(t *testing.T) {
	conds, args := Compile([]model.Filter{
		{Field: "bpm", Op: model.OpIs, Value: "fast"},         // malformed number
		{Field: "nope", Op: model.OpIs, Value: "x"},           // unknown field
		{Field: "title", Op: model.OpGt, Value: "a"},          // wrong operator for type
		{Field: "bpm", Op: model.OpRange, From: "a", To: "b"}, // malformed range
		{Field: "artist", Op: model.OpIs, Value: "Moderat"},   // the one survivor
	})

	require.Len(t, conds, 1)
	assert.Equal(t, "LOWER(t.artist) = LOWER(?)", conds[0])
	assert.Equal(t, []interface{}{"Moderat"}, args)
}

func TestLikeValuesAreEscaped(t *testing.T) {
	_, args := Compile([]model.Filter{
		{Field: "title", Op: model.OpContains, Value: `100%_pure\mix`},
	})

	require.Len(t, args, 1)
	assert.Equal(t, `%100\%\_pure\\mix%`, args[0])
}

func TestZeroFiltersCompileToNothing(t *testing.T) {
	conds, args := Compile(nil)
	assert.Empty(t, conds)
	assert.Empty(t, args)
}
