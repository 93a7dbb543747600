package store

import (
	"context"
	"time"

	"github.com/qiongbi/card-ledger/internal/domain"
	"github.com/qiongbi/card-ledger/internal/store/schema"
)

// OfferFilter narrows and pages the latest-offer listing
type OfferFilter struct {
	Sources  []string
	Carriers []string
	Limit    int
	Offset   int
}

// HistoryFilter narrows and pages the history listing
type HistoryFilter struct {
	// Date restricts results to history rows archived on this calendar day
	Date *time.Time
	// LatestID restricts results to archived versions of one latest row
	LatestID *int64
	Source   string
	CardID   string
	Limit    int
	Offset   int
}

// Store defines the interface for database operations
type Store interface {
	// IngestOffer applies one snapshot to the ledger: create when absent,
	// archive-then-replace when changed, no-op when unchanged. The whole
	// read-compare-archive-write sequence runs in a single transaction with a
	// row lock on the (source, card_id) key.
	IngestOffer(ctx context.Context, snap domain.OfferSnapshot) (domain.IngestResult, error)

	// GetOfferByID retrieves a latest row by its internal id;
	// domain.ErrOfferNotFound when absent
	GetOfferByID(ctx context.Context, id int64) (*schema.OfferLatest, error)

	// GetOfferByKey retrieves a latest row by (source, card_id);
	// domain.ErrOfferNotFound when absent
	GetOfferByKey(ctx context.Context, source, cardID string) (*schema.OfferLatest, error)

	// ListOffers returns latest rows ordered by score desc, created_at desc,
	// id asc, plus the unpaged total
	ListOffers(ctx context.Context, filter OfferFilter) ([]schema.OfferLatest, int64, error)

	// ListHistory returns archived rows newest-first, plus the unpaged total
	ListHistory(ctx context.Context, filter HistoryFilter) ([]schema.OfferHistory, int64, error)

	// IncrementCounter atomically bumps a named counter, creating it at 1
	IncrementCounter(ctx context.Context, name string) error

	// GetCounters returns current values for the named counters; missing
	// counters read as 0
	GetCounters(ctx context.Context, names []string) (map[string]int64, error)

	// CreateEventLogs appends user event rows
	CreateEventLogs(ctx context.Context, events []schema.UserEventLog) error

	// Ping checks database connectivity
	Ping(ctx context.Context) error
}
