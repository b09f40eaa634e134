package specialty

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superclinic/clinic-assistant/pkg/logging"
)

type staticCatalog struct {
	entries []Specialty
	loads   int
	err     error
}

func (c *staticCatalog) List(_ context.Context) ([]Specialty, error) {
	c.loads++
	if c.err != nil {
		return nil, c.err
	}
	return c.entries, nil
}

func testCatalog() *staticCatalog {
	return &staticCatalog{entries: []Specialty{
		{ID: 1, Name: "Cardiologist"},
		{ID: 2, Name: "Neurologist"},
		{ID: 3, Name: "Orthopedic / Chiropractic"},
		{ID: 4, Name: "Dermatologist"},
	}}
}

func TestResolveExactMatch(t *testing.T) {
	m := NewMatcher(testCatalog(), logging.Default())

	got, err := m.Resolve(context.Background(), "  cardiologist ")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)
}

func TestResolveFuzzyMatch(t *testing.T) {
	m := NewMatcher(testCatalog(), logging.Default())

	// Token-pair similarity: orthopedist ~ orthopedic clears the threshold.
	got, err := m.Resolve(context.Background(), "Orthopedist")
	require.NoError(t, err)
	assert.Equal(t, "Orthopedic / Chiropractic", got.Name)
}

func TestResolveNoMatchCarriesSuggestions(t *testing.T) {
	m := NewMatcher(testCatalog(), logging.Default())

	_, err := m.Resolve(context.Background(), "xyzzy123")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoMatch))

	var noMatch *NoMatchError
	require.True(t, errors.As(err, &noMatch))
	assert.Equal(t, "xyzzy123", noMatch.Query)
	// Nothing in the catalog is anywhere near; no suggestions expected.
	assert.Empty(t, noMatch.Suggestions)
}

func TestResolveNearMissSuggestions(t *testing.T) {
	m := NewMatcher(testCatalog(), logging.Default(), WithThreshold(0.95))

	_, err := m.Resolve(context.Background(), "Dermatolog")
	var noMatch *NoMatchError
	require.True(t, errors.As(err, &noMatch))
	require.NotEmpty(t, noMatch.Suggestions)
	assert.Equal(t, "Dermatologist", noMatch.Suggestions[0].Name)
}

func TestResolveEmptyInput(t *testing.T) {
	m := NewMatcher(testCatalog(), logging.Default())

	_, err := m.Resolve(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestResolveDeterministic(t *testing.T) {
	m := NewMatcher(testCatalog(), logging.Default())

	first, err := m.Resolve(context.Background(), "Orthopedist")
	require.NoError(t, err)
	second, err := m.Resolve(context.Background(), "Orthopedist")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveTieBreaks(t *testing.T) {
	catalog := &staticCatalog{entries: []Specialty{
		{ID: 10, Name: "Pediatrics West"},
		{ID: 11, Name: "Pediatrics B"},
		{ID: 12, Name: "Pediatrics A"},
	}}
	m := NewMatcher(catalog, logging.Default())

	// Every candidate carries the token "pediatrics", so all score 1.0.
	// Shorter name wins; equal lengths fall back to lexicographic order.
	got, err := m.Resolve(context.Background(), "pediatrics")
	require.NoError(t, err)
	assert.Equal(t, "Pediatrics A", got.Name)
}

func TestCatalogCachedUntilInvalidated(t *testing.T) {
	catalog := testCatalog()
	m := NewMatcher(catalog, logging.Default())

	_, err := m.Resolve(context.Background(), "Cardiologist")
	require.NoError(t, err)
	_, err = m.Resolve(context.Background(), "Neurologist")
	require.NoError(t, err)
	assert.Equal(t, 1, catalog.loads)

	m.Invalidate()
	_, err = m.Resolve(context.Background(), "Cardiologist")
	require.NoError(t, err)
	assert.Equal(t, 2, catalog.loads)
}

func TestCatalogLoadFailure(t *testing.T) {
	catalog := &staticCatalog{err: errors.New("boom")}
	m := NewMatcher(catalog, logging.Default())

	_, err := m.Resolve(context.Background(), "Cardiologist")
	assert.Error(t, err)
}

func TestScoreFunction(t *testing.T) {
	tests := []struct {
		input     string
		candidate string
		min, max  float64
	}{
		{"cardiologist", "cardiologist", 1, 1},
		{"orthopedist", "orthopedic / chiropractic", 0.6, 1},
		{"xyzzy123", "cardiologist", 0, 0.3},
	}
	for _, tt := range tests {
		got := score(tt.input, tt.candidate)
		if got < tt.min || got > tt.max {
			t.Fatalf("score(%q, %q) = %v, want within [%v, %v]", tt.input, tt.candidate, got, tt.min, tt.max)
		}
	}
}
