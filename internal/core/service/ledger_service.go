package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/katalis/laku/internal/core/domain"
	"github.com/katalis/laku/internal/port"
)

const DefaultOperationTimeout = 5 * time.Second

// LedgerService is the sales-and-inventory engine. It holds no ledger state
// of its own: every call runs against the repository, mutations inside a
// single transaction.
type LedgerService struct {
	repo      port.LedgerRepository
	guard     port.IdempotencyGuard
	logger    *zap.Logger
	loc       *time.Location
	opTimeout time.Duration
	now       func() time.Time
}

type Option func(*LedgerService)

func WithLogger(logger *zap.Logger) Option {
	return func(s *LedgerService) { s.logger = logger }
}

// WithIdempotencyGuard enables request-id deduplication for sale submissions.
func WithIdempotencyGuard(guard port.IdempotencyGuard) Option {
	return func(s *LedgerService) { s.guard = guard }
}

// WithLocation sets the shop's time zone used for hourly analytics.
func WithLocation(loc *time.Location) Option {
	return func(s *LedgerService) { s.loc = loc }
}

// WithOperationTimeout bounds each engine call, lock waits included.
// Zero disables the bound.
func WithOperationTimeout(d time.Duration) Option {
	return func(s *LedgerService) { s.opTimeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

func NewLedgerService(repo port.LedgerRepository, opts ...Option) *LedgerService {
	s := &LedgerService{
		repo:      repo,
		logger:    zap.NewNop(),
		loc:       time.Local,
		opTimeout: DefaultOperationTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "ledger"))
	return s
}

func (s *LedgerService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// ListSales returns every sale, newest id first.
func (s *LedgerService) ListSales(ctx context.Context) ([]domain.Sale, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.repo.ListSales(ctx)
}

// Summary aggregates the whole sales log in the shop's time zone.
func (s *LedgerService) Summary(ctx context.Context) (domain.Summary, error) {
	sales, err := s.ListSales(ctx)
	if err != nil {
		return domain.Summary{}, err
	}
	for i := range sales {
		sales[i].CreatedAt = sales[i].CreatedAt.In(s.loc)
	}
	return domain.ComputeSummary(sales), nil
}

// Stats reports store connectivity and table sizes.
func (s *LedgerService) Stats(ctx context.Context) (port.StoreStats, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.repo.Stats(ctx)
}
