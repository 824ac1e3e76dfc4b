// pkg/cleaner/cleaner.go
package cleaner

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/customer-data-platform/pkg/converter"
	"github.com/David-Botos/customer-data-platform/pkg/model"
)

// CountryMatcher resolves a free-text nationality to an ISO 3166-1 alpha-3
// code. ok is false when the name cannot be matched unambiguously.
type CountryMatcher interface {
	Alpha3(name string) (code string, ok bool)
}

// CountryMatcherFunc adapts a plain function to CountryMatcher
type CountryMatcherFunc func(name string) (string, bool)

// Alpha3 calls f(name)
func (f CountryMatcherFunc) Alpha3(name string) (string, bool) {
	return f(name)
}

// Date columns coerced per table
var dateColumns = map[string][]string{
	model.ClientsTable:      {model.ColDateJoined, model.ColBirthdate},
	model.MembershipsTable:  {model.ColStartDate, model.ColEndDate},
	model.TransactionsTable: {model.ColDate},
}

// Pipeline cleans, normalizes and joins the raw collections. It performs no
// I/O and never mutates its inputs; a Pipeline is safe to reuse but a single
// Process call is synchronous.
type Pipeline struct {
	logger    *zap.Logger
	converter *converter.TypeConverter
	matcher   CountryMatcher
	clock     func() time.Time
}

// Option customizes a Pipeline
type Option func(*Pipeline)

// WithClock fixes the reference time used for age derivation
func WithClock(clock func() time.Time) Option {
	return func(p *Pipeline) {
		p.clock = clock
	}
}

// WithConverter replaces the default value converter
func WithConverter(tc *converter.TypeConverter) Option {
	return func(p *Pipeline) {
		p.converter = tc
	}
}

// NewPipeline creates a pipeline. The country matcher is required; use a
// matcher that always fails to disable country codes.
func NewPipeline(logger *zap.Logger, matcher CountryMatcher, opts ...Option) (*Pipeline, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if matcher == nil {
		return nil, errors.New("country matcher cannot be nil")
	}

	p := &Pipeline{
		logger:  logger.Named("pipeline"),
		matcher: matcher,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.converter == nil {
		p.converter = converter.NewTypeConverter(p.logger)
	}

	return p, nil
}

// Process runs every cleaning step over copies of the raw tables and returns
// the four processed tables plus the diagnostics gathered along the way.
// The only error returned is a MalformedInputError.
func (p *Pipeline) Process(raw model.RawTables) (*model.Processed, error) {
	if err := validateInput(raw); err != nil {
		return nil, err
	}

	start := time.Now()
	now := p.clock().UTC()
	diags := newDiagnosticCollector(p.logger, now)

	clients := raw.Clients.Clone()
	memberships := raw.Memberships.Clone()
	transactions := raw.Transactions.Clone()
	clients.Name, memberships.Name, transactions.Name = model.ClientsTable, model.MembershipsTable, model.TransactionsTable
	tables := []*model.Table{clients, memberships, transactions}

	for _, t := range tables {
		p.materializeIdentifiers(t)
	}

	for _, t := range tables {
		for _, col := range dateColumns[t.Name] {
			p.coerceDates(t, col, diags)
		}
	}

	for _, t := range tables {
		p.normalizeClientIDs(t, diags)
	}

	p.reportDuplicates(clients, diags)
	p.reportDuplicates(memberships, diags)

	merged := p.join(clients, memberships, diags)

	p.deriveCountryCodes(clients, diags)
	p.deriveAges(clients, now, diags)
	transactions = p.filterTransactions(transactions, diags)

	p.logger.Info("Preprocessing completed",
		zap.Int("clients", clients.Len()),
		zap.Int("memberships", memberships.Len()),
		zap.Int("transactions", transactions.Len()),
		zap.Int("merged", merged.Len()),
		zap.Int("duplicateKeyWarnings", diags.count(model.DuplicateKey)),
		zap.Int("diagnostics", len(diags.all())),
		zap.Duration("duration", time.Since(start)))

	return &model.Processed{
		Clients:      clients,
		Memberships:  memberships,
		Transactions: transactions,
		Merged:       merged,
		Diagnostics:  diags.all(),
	}, nil
}

// validateInput rejects absent tables and rows that are not records
func validateInput(raw model.RawTables) error {
	inputs := []struct {
		name  string
		table *model.Table
	}{
		{model.ClientsTable, raw.Clients},
		{model.MembershipsTable, raw.Memberships},
		{model.TransactionsTable, raw.Transactions},
	}

	for _, in := range inputs {
		if in.table == nil {
			return &MalformedInputError{Table: in.name, Reason: "table is nil"}
		}
		for i, row := range in.table.Rows {
			if row == nil {
				return &MalformedInputError{Table: in.name, Reason: fmt.Sprintf("row %d is nil", i)}
			}
		}
	}
	return nil
}
