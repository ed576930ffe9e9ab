package cartsync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

// Strategy selects how saves reach the remote table.
type Strategy string

const (
	// StrategyUpsert writes with a conflict target on user_id and needs the
	// carts_user_id_key unique index.
	StrategyUpsert Strategy = config.CartSyncUpsert
	// StrategyReadThenBranch reads the latest row, then updates it by row id or
	// inserts. Two concurrent sessions for one user can both insert.
	StrategyReadThenBranch Strategy = config.CartSyncReadThenBranch
)

func ParseStrategy(v string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(v))) {
	case StrategyUpsert:
		return StrategyUpsert, nil
	case StrategyReadThenBranch, "":
		return StrategyReadThenBranch, nil
	}
	return "", pkgerrors.Newf(pkgerrors.CodeValidation, "unknown cart sync strategy %q", v)
}

type Outcome string

const (
	OutcomeLoaded        Outcome = "loaded"
	OutcomeEmpty         Outcome = "empty"
	OutcomeLoadFailed    Outcome = "load_failed"
	OutcomeUpdated       Outcome = "updated"
	OutcomeInserted      Outcome = "inserted"
	OutcomeUpserted      Outcome = "upserted"
	OutcomeSkippedNoUser Outcome = "skipped_no_user"
	OutcomeSkippedEmpty  Outcome = "skipped_empty"
	OutcomeFailed        Outcome = "failed"
)

// LoadResult always carries a usable line set; Err is set only on load_failed.
type LoadResult struct {
	Lines   []cart.Line
	Outcome Outcome
	Err     error
}

// SaveResult reports what a save did. Err is set only when Outcome is failed.
type SaveResult struct {
	Outcome Outcome
	Err     error
}

func (r SaveResult) Wrote() bool {
	switch r.Outcome {
	case OutcomeUpdated, OutcomeInserted, OutcomeUpserted:
		return true
	}
	return false
}

// Service reconciles a session cart with the user's remote record. It never
// returns errors to the caller; failures are logged, counted and reported in
// the result.
type Service struct {
	table    RemoteTable
	strategy Strategy
	logg     *logger.Logger
	metrics  *metrics.CartSyncMetrics
	now      func() time.Time
}

type Option func(*Service)

// WithClock overrides the timestamp source used for updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithMetrics(m *metrics.CartSyncMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func NewService(table RemoteTable, strategy Strategy, logg *logger.Logger, opts ...Option) (*Service, error) {
	if table == nil {
		return nil, fmt.Errorf("remote cart table required")
	}
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return nil, err
	}
	if strategy == "" {
		strategy = StrategyReadThenBranch
	}
	svc := &Service{
		table:    table,
		strategy: strategy,
		logg:     logg,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

func (s *Service) Strategy() Strategy {
	return s.strategy
}

// LoadForUser returns the latest remote snapshot for userID, or an empty line
// set when there is none or the fetch fails.
func (s *Service) LoadForUser(ctx context.Context, userID string) LoadResult {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return LoadResult{Lines: []cart.Line{}, Outcome: OutcomeEmpty}
	}

	start := time.Now()
	record, err := s.table.FindLatestByUser(ctx, userID)
	if err != nil {
		err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load remote cart")
		s.finish(ctx, "load", userID, OutcomeLoadFailed, start, err)
		return LoadResult{Lines: []cart.Line{}, Outcome: OutcomeLoadFailed, Err: err}
	}
	if record == nil || len(record.Lines) == 0 {
		s.finish(ctx, "load", userID, OutcomeEmpty, start, nil)
		return LoadResult{Lines: []cart.Line{}, Outcome: OutcomeEmpty}
	}

	s.finish(ctx, "load", userID, OutcomeLoaded, start, nil)
	return LoadResult{Lines: record.Lines, Outcome: OutcomeLoaded}
}

// SaveForUser writes state as userID's remote snapshot using the configured strategy.
func (s *Service) SaveForUser(ctx context.Context, userID string, state cart.State) SaveResult {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		s.metrics.Observe("save", string(OutcomeSkippedNoUser), 0)
		return SaveResult{Outcome: OutcomeSkippedNoUser}
	}

	start := time.Now()
	lines := state.Lines
	if lines == nil {
		lines = []cart.Line{}
	}

	var result SaveResult
	switch s.strategy {
	case StrategyUpsert:
		result = s.upsert(ctx, userID, lines)
	default:
		result = s.readThenBranch(ctx, userID, lines)
	}

	s.finish(ctx, "save", userID, result.Outcome, start, result.Err)
	return result
}

func (s *Service) upsert(ctx context.Context, userID string, lines []cart.Line) SaveResult {
	if err := s.table.UpsertByUser(ctx, userID, lines, s.now()); err != nil {
		return failed(err, "upsert remote cart")
	}
	return SaveResult{Outcome: OutcomeUpserted}
}

func (s *Service) readThenBranch(ctx context.Context, userID string, lines []cart.Line) SaveResult {
	existing, err := s.table.FindLatestByUser(ctx, userID)
	if err != nil {
		return failed(err, "find remote cart")
	}
	if existing != nil {
		if err := s.table.UpdateByID(ctx, existing.RowID, lines, s.now()); err != nil {
			return failed(err, "update remote cart")
		}
		return SaveResult{Outcome: OutcomeUpdated}
	}
	if len(lines) == 0 {
		return SaveResult{Outcome: OutcomeSkippedEmpty}
	}
	if err := s.table.Insert(ctx, userID, lines, s.now()); err != nil {
		if db.IsUniqueViolation(err, "") {
			return failed(err, "insert remote cart raced with another session")
		}
		return failed(err, "insert remote cart")
	}
	return SaveResult{Outcome: OutcomeInserted}
}

func failed(err error, message string) SaveResult {
	return SaveResult{Outcome: OutcomeFailed, Err: pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)}
}

func (s *Service) finish(ctx context.Context, op, userID string, outcome Outcome, start time.Time, err error) {
	s.metrics.Observe(op, string(outcome), time.Since(start))

	ctx = s.logg.WithFields(ctx, map[string]any{
		"user_id":  userID,
		"op":       op,
		"outcome":  string(outcome),
		"strategy": string(s.strategy),
	})
	if err != nil {
		s.logg.Error(ctx, "cart.sync.failed", err)
		return
	}
	s.logg.Debug(ctx, "cart.sync")
}
