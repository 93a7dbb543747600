package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qiongbi/card-ledger/internal/domain"
	"github.com/qiongbi/card-ledger/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM database connection.
// It accesses the underlying *sql.DB and sets the pool configuration.
// If any of the pool settings are 0 or empty, reasonable defaults are used:
//   - MaxOpenConns: 20 (if 0)
//   - MaxIdleConns: 5 (if 0)
//   - ConnMaxLifetime: 5 minutes (if 0)
//   - ConnMaxIdleTime: 10 minutes (if 0)
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// mapTxError classifies transaction failures that stem from contention on the
// same (source, card_id) key so callers can retry them, and leaves everything
// else as-is.
//
// Relevant SQLSTATE codes:
//   - 40001: serialization_failure
//   - 40P01: deadlock_detected
//   - 55P03: lock_not_available
//   - 23505: unique_violation. Two ingests racing on a key with no row yet
//     find nothing to lock and both insert; the loser must retry, at which
//     point it sees the winner's committed row and takes the update path.
func mapTxError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03", "23505":
			return fmt.Errorf("%w: %s", domain.ErrConflict, pgErr.Code)
		}
	}

	return err
}

// IngestOffer applies one snapshot to the ledger inside a single transaction.
//
// The (source, card_id) row is locked with SELECT ... FOR UPDATE for the whole
// read-compare-archive-write sequence, so concurrent ingests for the same card
// serialize on the row lock and the history chain stays linear.
func (s *pgStore) IngestOffer(ctx context.Context, snap domain.OfferSnapshot) (domain.IngestResult, error) {
	var result domain.IngestResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Get the old row with a row-level lock (if it exists)
		var existing schema.OfferLatest
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("source = ? AND card_id = ?", snap.Source, snap.CardID).
			First(&existing).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to lock latest offer: %w", err)
		}

		incoming := schema.NewOfferLatest(snap)

		// 2. First snapshot for this key: create the latest row, no history
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := tx.Create(&incoming).Error; err != nil {
				return fmt.Errorf("failed to create latest offer: %w", err)
			}
			result = domain.IngestCreated
			return nil
		}

		// 3. Identical content: no writes at all, scrape timestamp included
		if existing.ContentEquals(&incoming) {
			result = domain.IngestUnchanged
			return nil
		}

		// 4. Content changed: archive the old version, then overwrite the
		// latest row in place so its id stays stable for external references
		history := schema.NewOfferHistory(&existing)
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to archive offer history: %w", err)
		}

		incoming.ID = existing.ID
		incoming.CreatedAt = time.Now()
		if err := tx.Save(&incoming).Error; err != nil {
			return fmt.Errorf("failed to update latest offer: %w", err)
		}
		result = domain.IngestUpdated
		return nil
	})
	if err != nil {
		return "", mapTxError(err)
	}

	return result, nil
}

// GetOfferByID retrieves a latest offer row by its internal ID
func (s *pgStore) GetOfferByID(ctx context.Context, id int64) (*schema.OfferLatest, error) {
	var offer schema.OfferLatest
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&offer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", domain.ErrOfferNotFound, id)
		}
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}
	return &offer, nil
}

// GetOfferByKey retrieves a latest offer row by its (source, card_id) key
func (s *pgStore) GetOfferByKey(ctx context.Context, source, cardID string) (*schema.OfferLatest, error) {
	var offer schema.OfferLatest
	err := s.db.WithContext(ctx).
		Where("source = ? AND card_id = ?", source, cardID).
		First(&offer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", domain.ErrOfferNotFound, source, cardID)
		}
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}
	return &offer, nil
}

// ListOffers retrieves latest offers based on filters
func (s *pgStore) ListOffers(ctx context.Context, filter OfferFilter) ([]schema.OfferLatest, int64, error) {
	query := s.db.WithContext(ctx).Model(&schema.OfferLatest{})

	if len(filter.Sources) > 0 {
		query = query.Where("source IN ?", filter.Sources)
	}
	if len(filter.Carriers) > 0 {
		query = query.Where("carrier IN ?", filter.Carriers)
	}

	// Count total before pagination
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count offers: %w", err)
	}

	var offers []schema.OfferLatest
	err := query.
		Order("score DESC NULLS LAST").
		Order("created_at DESC").
		Order("id ASC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&offers).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list offers: %w", err)
	}

	return offers, total, nil
}

// ListHistory retrieves archived offer versions based on filters, newest first
func (s *pgStore) ListHistory(ctx context.Context, filter HistoryFilter) ([]schema.OfferHistory, int64, error) {
	query := s.db.WithContext(ctx).Model(&schema.OfferHistory{})

	if filter.Date != nil {
		dayStart := time.Date(filter.Date.Year(), filter.Date.Month(), filter.Date.Day(), 0, 0, 0, 0, filter.Date.Location())
		query = query.Where("archived_at >= ? AND archived_at < ?", dayStart, dayStart.AddDate(0, 0, 1))
	}
	if filter.LatestID != nil {
		query = query.Where("latest_id = ?", *filter.LatestID)
	}
	if filter.Source != "" {
		query = query.Where("source = ?", filter.Source)
	}
	if filter.CardID != "" {
		query = query.Where("card_id = ?", filter.CardID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count history: %w", err)
	}

	var rows []schema.OfferHistory
	err := query.
		Order("archived_at DESC").
		Order("id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list history: %w", err)
	}

	return rows, total, nil
}

// IncrementCounter atomically bumps a named counter, creating it at 1
func (s *pgStore) IncrementCounter(ctx context.Context, name string) error {
	counter := schema.StatCounter{Name: name, Value: 1}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      gorm.Expr("stat_counters.value + 1"),
			"updated_at": time.Now(),
		}),
	}).Create(&counter).Error
	if err != nil {
		return fmt.Errorf("failed to increment counter: %w", err)
	}
	return nil
}

// GetCounters returns current values for the named counters; missing counters read as 0
func (s *pgStore) GetCounters(ctx context.Context, names []string) (map[string]int64, error) {
	values := make(map[string]int64, len(names))
	for _, name := range names {
		values[name] = 0
	}

	if len(names) == 0 {
		return values, nil
	}

	var counters []schema.StatCounter
	err := s.db.WithContext(ctx).Where("name IN ?", names).Find(&counters).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get counters: %w", err)
	}

	for _, counter := range counters {
		values[counter.Name] = counter.Value
	}

	return values, nil
}

// CreateEventLogs appends user event rows
func (s *pgStore) CreateEventLogs(ctx context.Context, events []schema.UserEventLog) error {
	if len(events) == 0 {
		return nil
	}

	if err := s.db.WithContext(ctx).Create(&events).Error; err != nil {
		return fmt.Errorf("failed to create event logs: %w", err)
	}
	return nil
}

// Ping checks database connectivity
func (s *pgStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
