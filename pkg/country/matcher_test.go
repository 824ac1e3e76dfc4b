package country

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testCatalog(t *testing.T) *Matcher {
	t.Helper()
	m, err := newMatcher(zap.NewNop(), 16, []entry{
		{alpha3: "FRA", name: "France"},
		{alpha3: "CIV", name: "Côte d'Ivoire"},
		{alpha3: "USA", name: "United States"},
		{alpha3: "UMI", name: "United States Minor Outlying Islands"},
		{alpha3: "GIN", name: "Guinea"},
		{alpha3: "GNB", name: "Guinea-Bissau"},
		{alpha3: "PNG", name: "Papua New Guinea"},
	})
	require.NoError(t, err)
	return m
}

func TestCatalogMatching(t *testing.T) {
	m := testCatalog(t)

	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"exact", "France", "FRA", true},
		{"case and spacing", "  fRaNcE ", "FRA", true},
		{"accents folded", "cote d'ivoire", "CIV", true},
		{"alpha3 code", "usa", "USA", true},
		{"exact wins over longer names", "United States", "USA", true},
		{"exact wins over substring", "Guinea", "GIN", true},
		{"unique substring", "Bissau", "GNB", true},
		{"ambiguous substring", "Unit", "", false},
		{"misspelling", "United Statess", "", false},
		{"too short for substring", "Fr", "", false},
		{"empty", "   ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.Alpha3(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookupsAreMemoized(t *testing.T) {
	m := testCatalog(t)

	_, _ = m.Alpha3("France")
	_, _ = m.Alpha3("france")
	_, _ = m.Alpha3("Atlantis")
	assert.Equal(t, 2, m.cache.Len())
}

func TestName(t *testing.T) {
	m := testCatalog(t)

	name, ok := m.Name("fra")
	require.True(t, ok)
	assert.Equal(t, "France", name)

	_, ok = m.Name("XXX")
	assert.False(t, ok)
}

func TestISOCatalog(t *testing.T) {
	m, err := NewMatcher(zap.NewNop(), 0)
	require.NoError(t, err)

	code, ok := m.Alpha3("France")
	require.True(t, ok)
	assert.Equal(t, "FRA", code)

	_, ok = m.Alpha3("United Statess")
	assert.False(t, ok)

	_, ok = m.Name("DEU")
	assert.True(t, ok)
}

func TestConcurrentLookups(t *testing.T) {
	m := testCatalog(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				code, ok := m.Alpha3("France")
				assert.True(t, ok)
				assert.Equal(t, "FRA", code)
			}
		}()
	}
	wg.Wait()
}
