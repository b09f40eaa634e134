package specialty

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"

	"github.com/superclinic/clinic-assistant/internal/observability/metrics"
	"github.com/superclinic/clinic-assistant/pkg/logging"
)

// suggestionFloor is the minimum score a near miss needs to be worth
// surfacing as a "did you mean" candidate.
const suggestionFloor = 0.3

// Catalog supplies the specialty reference data the matcher scores against.
type Catalog interface {
	List(ctx context.Context) ([]Specialty, error)
}

// Matcher resolves free-text specialty input to a canonical specialty.
//
// Scoring is deterministic and documented so matcher output is reproducible:
// both sides are lowercased with whitespace collapsed; an exact normalized
// match wins outright. Otherwise score(candidate) is the maximum of the
// whole-string similarity and the best token-pair similarity, where
// similarity(a, b) = 1 - levenshtein(a, b)/max(len(a), len(b)) over runes and
// tokens split on non-alphanumeric runes (single-rune tokens ignored). The
// best candidate wins when its score reaches the threshold; ties break on
// shorter canonical name, then lexicographic order.
type Matcher struct {
	catalog        Catalog
	threshold      float64
	maxSuggestions int
	logger         *logging.Logger
	metrics        *metrics.EngineMetrics

	mu      sync.RWMutex
	loaded  bool
	entries []Specialty
	byName  map[string]Specialty
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithThreshold overrides the acceptance threshold (0-1 scale).
func WithThreshold(t float64) MatcherOption {
	return func(m *Matcher) {
		if t > 0 && t <= 1 {
			m.threshold = t
		}
	}
}

// WithMaxSuggestions overrides how many near misses a NoMatchError carries.
func WithMaxSuggestions(n int) MatcherOption {
	return func(m *Matcher) {
		if n >= 0 {
			m.maxSuggestions = n
		}
	}
}

// WithMetrics reports match outcomes to the engine metrics.
func WithMetrics(em *metrics.EngineMetrics) MatcherOption {
	return func(m *Matcher) {
		m.metrics = em
	}
}

// NewMatcher creates a matcher over the given catalog.
func NewMatcher(catalog Catalog, logger *logging.Logger, opts ...MatcherOption) *Matcher {
	if catalog == nil {
		panic("specialty: catalog required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	m := &Matcher{
		catalog:        catalog,
		threshold:      0.6,
		maxSuggestions: 3,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Resolve maps free-text input to a canonical specialty. It returns
// ErrEmptyQuery for blank input and a *NoMatchError (matching ErrNoMatch)
// when nothing clears the threshold.
func (m *Matcher) Resolve(ctx context.Context, freeText string) (*Specialty, error) {
	normalized := normalize(freeText)
	if normalized == "" {
		return nil, ErrEmptyQuery
	}

	if err := m.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.byName[normalized]; ok {
		m.metrics.ObserveMatch("exact")
		return &s, nil
	}

	scored := make([]scoredCandidate, 0, len(m.entries))
	for _, s := range m.entries {
		scored = append(scored, scoredCandidate{specialty: s, score: score(normalized, normalize(s.Name))})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		if len(scored[i].specialty.Name) != len(scored[j].specialty.Name) {
			return len(scored[i].specialty.Name) < len(scored[j].specialty.Name)
		}
		return scored[i].specialty.Name < scored[j].specialty.Name
	})

	if len(scored) > 0 && scored[0].score >= m.threshold {
		best := scored[0]
		m.logger.Debug("fuzzy matched specialty",
			"input", freeText,
			"matched", best.specialty.Name,
			"score", best.score,
		)
		m.metrics.ObserveMatch("fuzzy")
		return &best.specialty, nil
	}

	var suggestions []Suggestion
	for _, c := range scored {
		if len(suggestions) == m.maxSuggestions || c.score < suggestionFloor {
			break
		}
		suggestions = append(suggestions, Suggestion{Name: c.specialty.Name, Score: c.score})
	}
	m.metrics.ObserveMatch("no_match")
	return nil, &NoMatchError{Query: freeText, Suggestions: suggestions}
}

// Invalidate drops the cached catalog so the next Resolve reloads it.
// Hook for administrative changes to the reference data.
func (m *Matcher) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = false
	m.entries = nil
	m.byName = nil
}

func (m *Matcher) ensureLoaded(ctx context.Context) error {
	m.mu.RLock()
	loaded := m.loaded
	m.mu.RUnlock()
	if loaded {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		return nil
	}

	entries, err := m.catalog.List(ctx)
	if err != nil {
		return fmt.Errorf("specialty: load catalog: %w", err)
	}
	byName := make(map[string]Specialty, len(entries))
	for _, s := range entries {
		byName[normalize(s.Name)] = s
	}
	m.entries = entries
	m.byName = byName
	m.loaded = true
	return nil
}

type scoredCandidate struct {
	specialty Specialty
	score     float64
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// score expects both inputs already normalized.
func score(input, candidate string) float64 {
	best := similarity(input, candidate)
	for _, it := range tokenize(input) {
		for _, ct := range tokenize(candidate) {
			if s := similarity(it, ct); s > best {
				best = s
			}
		}
	}
	return best
}
