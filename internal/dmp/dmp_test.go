package dmp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMainReconstructsBothTexts(t *testing.T) {
	cases := []struct{ a, b string }{
		{"hello", "hello world"},
		{"hello world", "hello"},
		{"kitten", "sitting"},
		{"", "abc"},
		{"abc", ""},
		{"same", "same"},
		{"café", "cafés"},
	}
	for _, c := range cases {
		diffs := Main(c.a, c.b)
		assert.Equal(t, c.a, Text1(diffs), "Text1 for %q -> %q", c.a, c.b)
		assert.Equal(t, c.b, Text2(diffs), "Text2 for %q -> %q", c.a, c.b)
	}
}

func TestToDeltaFromDeltaRoundTrip(t *testing.T) {
	a, b := "hello", "hello world"
	diffs := Main(a, b)
	deltaText := ToDelta(diffs)

	restored, err := FromDelta(a, deltaText)
	require.NoError(t, err)
	assert.Equal(t, b, Text2(restored))
}

func TestParseEditsRoundTripsThroughToDelta(t *testing.T) {
	diffs := Main("hello", "hello world")
	deltaText := ToDelta(diffs)

	ops, err := ParseEdits(deltaText)
	require.NoError(t, err)
	assert.Equal(t, deltaText, DeltaFromEditOps(ops))

	restored, err := DiffsFromEditOps("hello", ops)
	require.NoError(t, err)
	assert.Equal(t, "hello world", Text2(restored))
}

func TestFromDeltaRejectsMalformed(t *testing.T) {
	_, err := FromDelta("hello", "=100")
	assert.ErrorIs(t, err, ErrMalformedDelta)

	_, err = FromDelta("hello", "bogus")
	assert.ErrorIs(t, err, ErrMalformedDelta)

	_, err = FromDelta("hello", "=2")
	assert.ErrorIs(t, err, ErrMalformedDelta, "must consume all of base")
}

func TestPatchApplyCleanCase(t *testing.T) {
	shadow := "hello"
	diffs := Main(shadow, "hello world")
	patch := PatchMake(shadow, diffs)

	result, results := PatchApply(patch, "hello")
	assert.Equal(t, "hello world", result)
	assert.Equal(t, []bool{true}, results)
}

func TestPatchApplyBestEffortMergeAgainstDriftedDocument(t *testing.T) {
	shadow := "hello"
	diffs := Main(shadow, "hello world")
	patch := PatchMake(shadow, diffs)

	// Document text has unrelated content prepended by another peer's edit,
	// but the patched region is still present and findable.
	result, results := PatchApply(patch, ">> hello")
	assert.Equal(t, ">> hello world", result)
	assert.Equal(t, []bool{true}, results)
}

func TestPatchApplyRejectsUnmatchableHunk(t *testing.T) {
	shadow := "hello"
	diffs := Main(shadow, "hello world")
	patch := PatchMake(shadow, diffs)

	result, results := PatchApply(patch, "completely different text")
	assert.Equal(t, "completely different text", result)
	assert.Equal(t, []bool{false}, results)
}

func TestCleanupEfficiencyMergesShortSandwichedEquality(t *testing.T) {
	diffs := []Diff{
		{Insert, "foo"},
		{Equal, "ab"},
		{Delete, "bar"},
	}
	cleaned := CleanupEfficiency(diffs)
	assert.Equal(t, "fooab", Text2(cleaned))
	assert.Equal(t, "abbar", Text1(cleaned))
}
