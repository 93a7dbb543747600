package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qiongbi/card-ledger/internal/domain"
	"github.com/qiongbi/card-ledger/internal/logger"
	"github.com/qiongbi/card-ledger/internal/store"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: true}); err != nil {
		panic(err)
	}
	m.Run()
}

// fakeStore implements store.Store with a programmable ingest function
type fakeStore struct {
	store.Store

	mu       sync.Mutex
	calls    int
	ingestFn func(ctx context.Context, call int, snap domain.OfferSnapshot) (domain.IngestResult, error)
}

func (f *fakeStore) IngestOffer(ctx context.Context, snap domain.OfferSnapshot) (domain.IngestResult, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	return f.ingestFn(ctx, call, snap)
}

func (f *fakeStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testSnapshot(cardID string) domain.OfferSnapshot {
	return domain.OfferSnapshot{
		Source:      "yd",
		CardID:      cardID,
		ProductName: "测试套餐",
		Carrier:     "联通",
		MonthlyRent: "19元",
		GeneralFlow: "30GB",
		CallMinutes: "100分钟",
		AgeRange:    "18-60",
	}
}

func TestIngestValidatesBeforeStore(t *testing.T) {
	fake := &fakeStore{ingestFn: func(context.Context, int, domain.OfferSnapshot) (domain.IngestResult, error) {
		t.Fatal("store must not be reached for invalid snapshots")
		return "", nil
	}}
	l := New(fake, Config{})
	defer l.Close()

	snap := testSnapshot("card-1")
	snap.ProductName = ""

	_, err := l.Ingest(context.Background(), snap)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidSnapshot)
	assert.Zero(t, fake.callCount())
}

func TestIngestRetriesConflicts(t *testing.T) {
	fake := &fakeStore{ingestFn: func(_ context.Context, call int, _ domain.OfferSnapshot) (domain.IngestResult, error) {
		if call < 3 {
			return "", fmt.Errorf("%w: 40001", domain.ErrConflict)
		}
		return domain.IngestUpdated, nil
	}}
	l := New(fake, Config{MaxRetries: 5})
	defer l.Close()

	result, err := l.Ingest(context.Background(), testSnapshot("card-2"))
	require.NoError(t, err)
	assert.Equal(t, domain.IngestUpdated, result)
	assert.Equal(t, 3, fake.callCount())
}

func TestIngestGivesUpAfterMaxRetries(t *testing.T) {
	fake := &fakeStore{ingestFn: func(context.Context, int, domain.OfferSnapshot) (domain.IngestResult, error) {
		return "", fmt.Errorf("%w: 40P01", domain.ErrConflict)
	}}
	l := New(fake, Config{MaxRetries: 2})
	defer l.Close()

	_, err := l.Ingest(context.Background(), testSnapshot("card-3"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConflict)
	// Initial attempt plus two retries
	assert.Equal(t, 3, fake.callCount())
}

func TestIngestDoesNotRetryPermanentErrors(t *testing.T) {
	storageErr := errors.New("connection refused")
	fake := &fakeStore{ingestFn: func(context.Context, int, domain.OfferSnapshot) (domain.IngestResult, error) {
		return "", storageErr
	}}
	l := New(fake, Config{MaxRetries: 5})
	defer l.Close()

	_, err := l.Ingest(context.Background(), testSnapshot("card-4"))
	require.Error(t, err)
	assert.ErrorIs(t, err, storageErr)
	assert.Equal(t, 1, fake.callCount())
}

func TestIngestRespectsContextCancellation(t *testing.T) {
	fake := &fakeStore{ingestFn: func(context.Context, int, domain.OfferSnapshot) (domain.IngestResult, error) {
		return "", fmt.Errorf("%w: 55P03", domain.ErrConflict)
	}}
	l := New(fake, Config{MaxRetries: 100})
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := l.Ingest(ctx, testSnapshot("card-5"))
	require.Error(t, err)
}

func TestIngestBoundsTransactionTime(t *testing.T) {
	fake := &fakeStore{ingestFn: func(ctx context.Context, _ int, _ domain.OfferSnapshot) (domain.IngestResult, error) {
		// Simulates an attempt stuck behind a held row lock
		<-ctx.Done()
		return "", ctx.Err()
	}}
	l := New(fake, Config{MaxRetries: 5, Timeout: 50 * time.Millisecond})
	defer l.Close()

	start := time.Now()
	_, err := l.Ingest(context.Background(), testSnapshot("card-6"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	// The deadline error is not a conflict, so there is exactly one attempt
	assert.Equal(t, 1, fake.callCount())
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestIngestBatch(t *testing.T) {
	fake := &fakeStore{ingestFn: func(_ context.Context, _ int, snap domain.OfferSnapshot) (domain.IngestResult, error) {
		switch snap.CardID {
		case "card-created":
			return domain.IngestCreated, nil
		case "card-updated":
			return domain.IngestUpdated, nil
		default:
			return domain.IngestUnchanged, nil
		}
	}}
	l := New(fake, Config{PoolSize: 2})
	defer l.Close()

	invalid := testSnapshot("card-invalid")
	invalid.Carrier = ""

	snaps := []domain.OfferSnapshot{
		testSnapshot("card-created"),
		testSnapshot("card-updated"),
		testSnapshot("card-same"),
		invalid,
	}

	batch := l.IngestBatch(context.Background(), snaps)
	assert.Equal(t, 1, batch.Created)
	assert.Equal(t, 1, batch.Updated)
	assert.Equal(t, 1, batch.Unchanged)
	require.Len(t, batch.Errors, 1)
	assert.Equal(t, 3, batch.Errors[0].Index)
	assert.Equal(t, "card-invalid", batch.Errors[0].CardID)
	assert.ErrorIs(t, batch.Errors[0].Err, domain.ErrInvalidSnapshot)
}

func TestIngestBatchEmpty(t *testing.T) {
	fake := &fakeStore{ingestFn: func(context.Context, int, domain.OfferSnapshot) (domain.IngestResult, error) {
		return domain.IngestCreated, nil
	}}
	l := New(fake, Config{})
	defer l.Close()

	batch := l.IngestBatch(context.Background(), nil)
	assert.Zero(t, batch.Created)
	assert.Empty(t, batch.Errors)
}

// Interface conformance for the embedded fake
var _ store.Store = (*fakeStore)(nil)
