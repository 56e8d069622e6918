package ngram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firefly/ngram-counter/internal/corpus"
	"github.com/firefly/ngram-counter/internal/expander"
	"github.com/firefly/ngram-counter/internal/logger"
	"github.com/firefly/ngram-counter/internal/matcher"
)

func writeCorpus(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const sampleCorpus = `The dog is big. The cat is big. A dog barked at the cat,
and the DOG ran. Concatenate cats into a category; the bird is small.
Dogs are not a dog. the big dog is big.`

var samplePatterns = []string{
	"dog", "cat", "bird", "the dog", "is big", "the cat is big", "zebra",
	"Dog", "a", "dog|cat", "colou?r", "dog",
}

// TestCountInText_Basics tests the core counting examples
func TestCountInText_Basics(t *testing.T) {
	c := New()

	result, err := c.CountInText([]string{"Cat"}, "I saw a cat and a CAT.")
	require.NoError(t, err)
	assert.Equal(t, ResultMap{"Cat": 2}, result)

	result, err = c.CountInText([]string{"cat"}, "concatenate cats category")
	require.NoError(t, err)
	assert.Equal(t, ResultMap{"cat": 0}, result)
}

// TestCountInText_NonOverlapping tests that overlapping occurrences are counted once
func TestCountInText_NonOverlapping(t *testing.T) {
	result, err := New().CountInText([]string{"a a", "aa"}, "a a a aaaa")
	require.NoError(t, err)
	assert.Equal(t, ResultMap{"a a": 1, "aa": 0}, result)
}

// TestCountInText_UnicodeWords tests that accented letters belong to the word around them
func TestCountInText_UnicodeWords(t *testing.T) {
	patterns := []string{"café", "na", "über", "straße"}
	text := "café au lait. naïve. über alles. die straße"
	expected := ResultMap{"café": 1, "na": 0, "über": 1, "straße": 1}

	result, err := New().CountInText(patterns, text)
	require.NoError(t, err)
	assert.Equal(t, expected, result)

	result, err = New(WithWorkers(3)).CountInTextParallel(patterns, text)
	require.NoError(t, err)
	assert.Equal(t, expected, result)
}

// TestCountInText_LogsStats tests the debug summary of a counting pass
func TestCountInText_LogsStats(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewWithConfig(&buf, "", log.DebugLevel, false, false, log.TextFormatter)

	result, err := New(WithLogger(l)).CountInText([]string{"dog", "cat", "dog"}, "dog cat dog")
	require.NoError(t, err)
	assert.Equal(t, ResultMap{"dog": 2, "cat": 1}, result)

	out := buf.String()
	assert.Contains(t, out, "counted patterns")
	assert.Contains(t, out, "distinct=2")
	assert.Contains(t, out, "matches=3")
}

// TestCountInText_Empty tests empty pattern lists and corpora
func TestCountInText_Empty(t *testing.T) {
	c := New()

	result, err := c.CountInText(nil, sampleCorpus)
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Empty(t, result)

	result, err = c.CountInTextParallel([]string{}, sampleCorpus)
	require.NoError(t, err)
	assert.Empty(t, result)

	result, err = c.CountInText([]string{"dog"}, "")
	require.NoError(t, err)
	assert.Equal(t, ResultMap{"dog": 0}, result)
}

// TestCountInTextParallel_MatchesSequential tests order independence of the parallel merge
func TestCountInTextParallel_MatchesSequential(t *testing.T) {
	sequential, err := New().CountInText(samplePatterns, sampleCorpus)
	require.NoError(t, err)

	for _, workers := range []int{1, 2, 4, 16, 64} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			parallel, err := New(WithWorkers(workers)).CountInTextParallel(samplePatterns, sampleCorpus)
			require.NoError(t, err)
			assert.Equal(t, sequential, parallel)
		})
	}

	assert.Equal(t, 5, sequential["dog"])
	assert.Equal(t, 5, sequential["Dog"])
	assert.Equal(t, 2, sequential["cat"])
	assert.Equal(t, 2, sequential["the dog"])
	assert.Equal(t, 0, sequential["zebra"])
	assert.Equal(t, 3, sequential["is big"])
	assert.Len(t, sequential, len(samplePatterns)-1)
}

// TestCountInText_Idempotent tests that repeated calls give identical maps
func TestCountInText_Idempotent(t *testing.T) {
	c := New(WithWorkers(3))
	first, err := c.CountInTextParallel(samplePatterns, sampleCorpus)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := c.CountInTextParallel(samplePatterns, sampleCorpus)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

// TestCountInText_NotNormalized tests that inline text keeps its spacing
func TestCountInText_NotNormalized(t *testing.T) {
	result, err := New().CountInText([]string{"a b"}, "a    b")
	require.NoError(t, err)
	assert.Equal(t, ResultMap{"a b": 0}, result)
}

// TestCountInFile_Normalized tests that file corpora count like their collapsed text
func TestCountInFile_Normalized(t *testing.T) {
	c := New()
	path := writeCorpus(t, "a    b and a  b")

	fromFile, err := c.CountInFile([]string{"a b"}, path)
	require.NoError(t, err)
	fromText, err := c.CountInText([]string{"a b"}, "a b and a b")
	require.NoError(t, err)
	assert.Equal(t, fromText, fromFile)
	assert.Equal(t, ResultMap{"a b": 2}, fromFile)

	parallel, err := c.CountInFileParallel([]string{"a b"}, path)
	require.NoError(t, err)
	assert.Equal(t, fromFile, parallel)
}

// TestCountInFile_Missing tests that an unreadable source fails the whole call
func TestCountInFile_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.txt")

	for _, parallel := range []bool{false, true} {
		var (
			result ResultMap
			err    error
		)
		if parallel {
			result, err = New().CountInFileParallel([]string{"dog"}, path)
		} else {
			result, err = New().CountInFile([]string{"dog"}, path)
		}
		require.Error(t, err)
		assert.Nil(t, result)

		var readErr *corpus.SourceReadError
		require.True(t, errors.As(err, &readErr))
		assert.Equal(t, path, readErr.Source)
	}
}

// TestCountInText_InvalidPattern tests that one bad pattern fails the whole call
func TestCountInText_InvalidPattern(t *testing.T) {
	patterns := []string{"dog", "a(b", "cat"}

	for _, parallel := range []bool{false, true} {
		c := New(WithWorkers(2))
		var (
			result ResultMap
			err    error
		)
		if parallel {
			result, err = c.CountInTextParallel(patterns, sampleCorpus)
		} else {
			result, err = c.CountInText(patterns, sampleCorpus)
		}
		require.Error(t, err)
		assert.Nil(t, result)

		var patternErr *matcher.InvalidPatternError
		require.True(t, errors.As(err, &patternErr))
		assert.Equal(t, "a(b", patternErr.Pattern)
	}
}

// TestCountInText_LiteralMode tests that literal mode does not interpret syntax
func TestCountInText_LiteralMode(t *testing.T) {
	result, err := New(WithMode(matcher.Literal)).CountInText([]string{"a(b", "dog|cat"}, "a(b dog|cat dog")
	require.NoError(t, err)
	assert.Equal(t, ResultMap{"a(b": 1, "dog|cat": 1}, result)
}

// TestCountInText_PartialResults tests the partial-failure report
func TestCountInText_PartialResults(t *testing.T) {
	c := New(WithPartialResults(true), WithWorkers(4))

	for _, parallel := range []bool{false, true} {
		var (
			result ResultMap
			err    error
		)
		if parallel {
			result, err = c.CountInTextParallel([]string{"dog", "a(b", "cat", "[x"}, sampleCorpus)
		} else {
			result, err = c.CountInText([]string{"dog", "a(b", "cat", "[x"}, sampleCorpus)
		}
		assert.Equal(t, ResultMap{"dog": 5, "cat": 2}, result)

		var partial *PartialError
		require.True(t, errors.As(err, &partial))
		require.Len(t, partial.Failures, 2)
		assert.Equal(t, "[x", partial.Failures[0].Pattern)
		assert.Equal(t, "a(b", partial.Failures[1].Pattern)

		var patternErr *matcher.InvalidPatternError
		assert.True(t, errors.As(err, &patternErr))
		assert.Contains(t, err.Error(), "2 pattern(s) failed")
	}

	result, err := c.CountInText([]string{"dog"}, "dog")
	require.NoError(t, err)
	assert.Equal(t, ResultMap{"dog": 1}, result)
}

// TestCountCombinatorial tests expansion of templates for each candidate word
func TestCountCombinatorial(t *testing.T) {
	path := writeCorpus(t, "the dog is big. the cat is big.")

	nested, err := New().CountCombinatorial([]string{"the {word} is big"}, path, []string{"dog", "cat"})
	require.NoError(t, err)
	assert.Equal(t, NestedResultMap{
		"dog": {"the dog is big": 1},
		"cat": {"the cat is big": 1},
	}, nested)
}

// TestCountCombinatorial_MixedTemplates tests plain patterns next to templates
func TestCountCombinatorial_MixedTemplates(t *testing.T) {
	path := writeCorpus(t, "the   dog is big. a dog. the cat is big. big  big")
	templates := []string{"the {word} is big", "a {{word}}", "big"}
	words := []string{"dog", "cat", "bird"}

	expected := NestedResultMap{
		"dog":  {"the dog is big": 1, "a dog": 1, "big": 4},
		"cat":  {"the cat is big": 1, "a cat": 0, "big": 4},
		"bird": {"the bird is big": 0, "a bird": 0, "big": 4},
	}

	for _, inner := range []bool{true, false} {
		t.Run(fmt.Sprintf("inner=%v", inner), func(t *testing.T) {
			nested, err := New(WithWorkers(2), WithInnerParallel(inner)).CountCombinatorial(templates, path, words)
			require.NoError(t, err)
			assert.Equal(t, expected, nested)
		})
	}
}

// TestCountCombinatorial_Empty tests empty candidate and template lists
func TestCountCombinatorial_Empty(t *testing.T) {
	path := writeCorpus(t, "the dog is big")
	c := New()

	nested, err := c.CountCombinatorial([]string{"the {word}"}, path, nil)
	require.NoError(t, err)
	assert.NotNil(t, nested)
	assert.Empty(t, nested)

	nested, err = c.CountCombinatorial(nil, path, []string{"dog", "cat"})
	require.NoError(t, err)
	assert.Equal(t, NestedResultMap{"dog": {}, "cat": {}}, nested)
}

// TestCountCombinatorial_DuplicateWords tests one entry per distinct word
func TestCountCombinatorial_DuplicateWords(t *testing.T) {
	nested, err := New().CountCombinatorialInText([]string{"{word}"}, "dog dog cat", []string{"dog", "cat", "dog"})
	require.NoError(t, err)
	assert.Equal(t, NestedResultMap{"dog": {"dog": 2}, "cat": {"cat": 1}}, nested)
}

// TestCountCombinatorial_Deterministic tests that worker count does not change results
func TestCountCombinatorial_Deterministic(t *testing.T) {
	templates := []string{"the {word}", "{word} is big", "a {word}", "is"}
	words := []string{"dog", "cat", "bird", "DOG", "big dog", "fish"}

	reference, err := New(WithWorkers(1)).CountCombinatorialInText(templates, sampleCorpus, words)
	require.NoError(t, err)
	require.Len(t, reference, len(words))

	for _, workers := range []int{2, 3, 8, 32} {
		nested, err := New(WithWorkers(workers)).CountCombinatorialInText(templates, sampleCorpus, words)
		require.NoError(t, err)
		assert.Equal(t, reference, nested)
	}
	assert.Equal(t, 2, reference["dog"]["the dog"])
	assert.Equal(t, 1, reference["big dog"]["the big dog"])
}

// TestCountCombinatorial_MissingSource tests that a bad source aborts before any expansion
func TestCountCombinatorial_MissingSource(t *testing.T) {
	nested, err := New().CountCombinatorial([]string{"{word}"}, filepath.Join(t.TempDir(), "nope"), []string{"dog"})
	assert.Nil(t, nested)

	var readErr *corpus.SourceReadError
	assert.True(t, errors.As(err, &readErr))
}

// TestCountCombinatorial_Failures tests the all-or-nothing policy for bad templates and patterns
func TestCountCombinatorial_Failures(t *testing.T) {
	path := writeCorpus(t, "the dog is big")

	nested, err := New().CountCombinatorial([]string{"the {word", "{word}"}, path, []string{"dog", "cat"})
	assert.Nil(t, nested)
	var renderErr *expander.TemplateRenderError
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, "the {word", renderErr.Template)

	nested, err = New().CountCombinatorial([]string{"{word}"}, path, []string{"dog", "ca(t"})
	assert.Nil(t, nested)
	var patternErr *matcher.InvalidPatternError
	require.True(t, errors.As(err, &patternErr))
	assert.Equal(t, "ca(t", patternErr.Pattern)
	assert.Contains(t, err.Error(), `candidate word "ca(t"`)
}

// TestCountCombinatorial_LowestFailingWord tests that the reported failure does not depend on scheduling
func TestCountCombinatorial_LowestFailingWord(t *testing.T) {
	words := []string{"dog", "a(b", "cat", "c(d", "e[f", "bird", "g(h"}

	for i := 0; i < 20; i++ {
		for _, workers := range []int{1, 2, 8} {
			nested, err := New(WithWorkers(workers)).CountCombinatorialInText([]string{"{word}"}, sampleCorpus, words)
			assert.Nil(t, nested)

			var patternErr *matcher.InvalidPatternError
			require.True(t, errors.As(err, &patternErr))
			assert.Equal(t, "a(b", patternErr.Pattern)
			assert.Contains(t, err.Error(), `candidate word "a(b"`)
		}
	}
}

// TestCountCombinatorial_Cancelled tests that a done context stops the fan-out
func TestCountCombinatorial_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	nested, err := New().CountCombinatorialInSource(ctx, []string{"{word}"}, corpus.Text("dog"), []string{"dog", "cat"})
	assert.Nil(t, nested)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestCountCombinatorial_WarnsWithoutPlaceholder tests the warning for templates that ignore the word
func TestCountCombinatorial_WarnsWithoutPlaceholder(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewWithConfig(&buf, "", log.WarnLevel, false, false, log.TextFormatter)

	nested, err := New(WithLogger(l)).CountCombinatorialInText([]string{"dog"}, "dog", []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, NestedResultMap{"x": {"dog": 1}, "y": {"dog": 1}}, nested)
	assert.Contains(t, buf.String(), "no template contains the placeholder")

	buf.Reset()
	_, err = New(WithLogger(l)).CountCombinatorialInText([]string{"{{word}}", "dog"}, "dog", []string{"x"})
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

// TestCountCombinatorial_PartialResults tests partial reports in combinatorial mode
func TestCountCombinatorial_PartialResults(t *testing.T) {
	c := New(WithPartialResults(true))
	nested, err := c.CountCombinatorialInText(
		[]string{"the {word} is big", "bad {word"}, "the dog is big", []string{"dog", "ca(t"})

	assert.Equal(t, NestedResultMap{
		"dog":  {"the dog is big": 1},
		"ca(t": {},
	}, nested)

	var partial *PartialError
	require.True(t, errors.As(err, &partial))
	require.Len(t, partial.Failures, 4)

	words := make([]string, 0, len(partial.Failures))
	for _, f := range partial.Failures {
		words = append(words, f.Word)
	}
	assert.Equal(t, []string{"ca(t", "ca(t", "dog", "dog"}, words)
	assert.True(t, strings.Contains(err.Error(), `word "dog"`))
}

// TestCountInSource_Text tests the source-based entry point with inline text
func TestCountInSource_Text(t *testing.T) {
	result, err := New().CountInSource(context.Background(), []string{"a b"}, corpus.Text("a  b a b"), true)
	require.NoError(t, err)
	assert.Equal(t, ResultMap{"a b": 1}, result)
}

// TestNew_Options tests option defaults and overrides
func TestNew_Options(t *testing.T) {
	c := New()
	assert.Positive(t, c.Workers())
	assert.Equal(t, matcher.Syntax, c.mode)
	assert.True(t, c.innerParallel)
	assert.False(t, c.partial)

	c = New(WithWorkers(7), WithWorkers(0), WithLogger(nil))
	assert.Equal(t, 7, c.Workers())
	assert.NotNil(t, c.log)
}
