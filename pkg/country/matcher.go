// pkg/country/matcher.go
package country

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/biter777/countries"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultCacheSize bounds the number of memoized lookups
const DefaultCacheSize = 4096

// minFuzzyLength is the shortest query allowed to match by substring
const minFuzzyLength = 4

type entry struct {
	alpha3 string
	name   string
	folded string
}

type result struct {
	code string
	ok   bool
}

// Matcher resolves free-text country names to ISO 3166-1 alpha-3 codes.
// Lookups try an exact match on name or code first, then accept a query that
// is a substring of exactly one country name. Anything else is unmatched.
// A Matcher is safe for concurrent use.
type Matcher struct {
	logger  *zap.Logger
	entries []entry
	byCode  map[string]entry
	exact   func(string) (string, bool)
	cache   *lru.Cache[string, result]
}

// NewMatcher builds a matcher over the ISO 3166-1 country list
func NewMatcher(logger *zap.Logger, cacheSize int) (*Matcher, error) {
	all := countries.All()
	entries := make([]entry, 0, len(all))
	for _, c := range all {
		if !c.IsValid() || c.Alpha3() == "" {
			continue
		}
		entries = append(entries, entry{alpha3: c.Alpha3(), name: c.String()})
	}

	m, err := newMatcher(logger, cacheSize, entries)
	if err != nil {
		return nil, err
	}
	m.exact = func(name string) (string, bool) {
		c := countries.ByName(name)
		if c == countries.Unknown || !c.IsValid() || c.Alpha3() == "" {
			return m.exactFromCatalog(name)
		}
		return c.Alpha3(), true
	}
	return m, nil
}

func newMatcher(logger *zap.Logger, cacheSize int, entries []entry) (*Matcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}

	cache, err := lru.New[string, result](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup cache: %w", err)
	}

	m := &Matcher{
		logger:  logger.Named("country-matcher"),
		entries: make([]entry, len(entries)),
		byCode:  make(map[string]entry, len(entries)),
		cache:   cache,
	}
	for i, e := range entries {
		e.folded = fold(e.name)
		m.entries[i] = e
		m.byCode[e.alpha3] = e
	}
	m.exact = m.exactFromCatalog
	return m, nil
}

// Alpha3 returns the alpha-3 code for a country name
func (m *Matcher) Alpha3(name string) (string, bool) {
	key := fold(name)
	if key == "" {
		return "", false
	}
	if cached, ok := m.cache.Get(key); ok {
		return cached.code, cached.ok
	}

	code, ok := m.lookup(name, key)
	m.cache.Add(key, result{code: code, ok: ok})
	if !ok {
		m.logger.Debug("No unambiguous country match", zap.String("name", name))
	}
	return code, ok
}

// Name returns the display name for an alpha-3 code
func (m *Matcher) Name(alpha3 string) (string, bool) {
	e, ok := m.byCode[strings.ToUpper(strings.TrimSpace(alpha3))]
	if !ok {
		return "", false
	}
	return e.name, true
}

func (m *Matcher) lookup(name, folded string) (string, bool) {
	if code, ok := m.exact(strings.TrimSpace(name)); ok {
		return code, true
	}
	if code, ok := m.exactFromCatalog(folded); ok {
		return code, true
	}
	if len([]rune(folded)) < minFuzzyLength {
		return "", false
	}

	var match string
	for _, e := range m.entries {
		if strings.Contains(e.folded, folded) {
			if match != "" && match != e.alpha3 {
				return "", false
			}
			match = e.alpha3
		}
	}
	return match, match != ""
}

func (m *Matcher) exactFromCatalog(name string) (string, bool) {
	folded := fold(name)
	if e, ok := m.byCode[strings.ToUpper(folded)]; ok {
		return e.alpha3, true
	}
	for _, e := range m.entries {
		if e.folded == folded {
			return e.alpha3, true
		}
	}
	return "", false
}

// fold lower-cases, strips accents and collapses whitespace
func fold(s string) string {
	accentFolder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(accentFolder, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}
