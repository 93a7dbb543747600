package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/qiongbi/card-ledger/internal/domain"
	"github.com/qiongbi/card-ledger/internal/store/schema"
)

// =============================================================================
// Test Data Builders
// =============================================================================

// buildTestSnapshot creates a valid snapshot for a given key
func buildTestSnapshot(source, cardID string) domain.OfferSnapshot {
	rebate := decimal.NewFromFloat(5.50)
	score := 80
	dataTime := time.Now().UTC().Truncate(time.Second)
	return domain.OfferSnapshot{
		Source:       source,
		CardID:       cardID,
		ProductName:  "星卡29元185G",
		Carrier:      "电信",
		MonthlyRent:  "29元",
		GeneralFlow:  "185GB",
		CallMinutes:  "100分钟",
		AgeRange:     "18-60",
		RebateAmount: &rebate,
		Score:        &score,
		ExtraParams:  json.RawMessage(`{"channel":"web"}`),
		DataTime:     &dataTime,
	}
}

func ingestOne(t *testing.T, s Store, snap domain.OfferSnapshot) domain.IngestResult {
	t.Helper()
	result, err := s.IngestOffer(context.Background(), snap)
	require.NoError(t, err)
	return result
}

// =============================================================================
// Ingest
// =============================================================================

func testIngestCreate(t *testing.T, s Store) {
	ctx := context.Background()
	snap := buildTestSnapshot("yd", "card-001")

	result := ingestOne(t, s, snap)
	assert.Equal(t, domain.IngestCreated, result)

	offer, err := s.GetOfferByKey(ctx, "yd", "card-001")
	require.NoError(t, err)
	require.NotNil(t, offer)
	assert.Equal(t, "星卡29元185G", offer.ProductName)
	assert.Equal(t, "29元", offer.MonthlyRent)
	assert.NotZero(t, offer.ID)
	assert.False(t, offer.CreatedAt.IsZero())

	// A first ingest must not leave any history rows
	history, total, err := s.ListHistory(ctx, HistoryFilter{Source: "yd", CardID: "card-001", Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, history)
}

func testIngestUnchanged(t *testing.T, s Store) {
	ctx := context.Background()
	snap := buildTestSnapshot("yd", "card-002")

	ingestOne(t, s, snap)

	before, err := s.GetOfferByKey(ctx, "yd", "card-002")
	require.NoError(t, err)
	require.NotNil(t, before)

	// Re-submit identical content with a fresh scrape timestamp
	later := time.Now().UTC().Add(time.Hour)
	snap.DataTime = &later
	result := ingestOne(t, s, snap)
	assert.Equal(t, domain.IngestUnchanged, result)

	after, err := s.GetOfferByKey(ctx, "yd", "card-002")
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.Equal(t, before.ID, after.ID)
	assert.True(t, before.CreatedAt.Equal(after.CreatedAt))
	// The stored scrape timestamp is not refreshed on unchanged ingests
	require.NotNil(t, after.DataTime)
	assert.True(t, before.DataTime.Equal(*after.DataTime))

	_, total, err := s.ListHistory(ctx, HistoryFilter{Source: "yd", CardID: "card-002", Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func testIngestUpdated(t *testing.T, s Store) {
	ctx := context.Background()
	snap := buildTestSnapshot("yd", "card-003")

	ingestOne(t, s, snap)
	original, err := s.GetOfferByKey(ctx, "yd", "card-003")
	require.NoError(t, err)
	require.NotNil(t, original)

	changed := snap
	changed.MonthlyRent = "39元"
	result := ingestOne(t, s, changed)
	assert.Equal(t, domain.IngestUpdated, result)

	latest, err := s.GetOfferByKey(ctx, "yd", "card-003")
	require.NoError(t, err)
	require.NotNil(t, latest)
	// The latest row keeps its id across updates
	assert.Equal(t, original.ID, latest.ID)
	assert.Equal(t, "39元", latest.MonthlyRent)
	assert.True(t, latest.CreatedAt.After(original.CreatedAt) || latest.CreatedAt.Equal(original.CreatedAt))

	history, total, err := s.ListHistory(ctx, HistoryFilter{Source: "yd", CardID: "card-003", Limit: 10})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, history, 1)
	// The archived row carries the superseded content and points at the latest row
	assert.Equal(t, latest.ID, history[0].LatestID)
	assert.Equal(t, "29元", history[0].MonthlyRent)
	assert.Equal(t, original.ProductName, history[0].ProductName)
	assert.True(t, original.CreatedAt.Equal(history[0].CreatedAt))
}

func testIngestVersionChain(t *testing.T, s Store) {
	ctx := context.Background()
	snap := buildTestSnapshot("lt", "card-010")

	ingestOne(t, s, snap)

	v2 := snap
	v2.MonthlyRent = "19元"
	ingestOne(t, s, v2)

	v3 := snap
	v3.MonthlyRent = "9元"
	ingestOne(t, s, v3)

	latest, err := s.GetOfferByKey(ctx, "lt", "card-010")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "9元", latest.MonthlyRent)

	history, total, err := s.ListHistory(ctx, HistoryFilter{Source: "lt", CardID: "card-010", Limit: 10})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, history, 2)
	for _, row := range history {
		assert.Equal(t, latest.ID, row.LatestID)
	}
	// Newest first
	assert.Equal(t, "19元", history[0].MonthlyRent)
	assert.Equal(t, "29元", history[1].MonthlyRent)
}

func testIngestIndependentSources(t *testing.T, s Store) {
	ctx := context.Background()

	// The same card_id under two sources forms two independent keys
	a := buildTestSnapshot("yd", "card-shared")
	b := buildTestSnapshot("lt", "card-shared")
	b.ProductName = "另一个套餐"

	assert.Equal(t, domain.IngestCreated, ingestOne(t, s, a))
	assert.Equal(t, domain.IngestCreated, ingestOne(t, s, b))

	offerA, err := s.GetOfferByKey(ctx, "yd", "card-shared")
	require.NoError(t, err)
	require.NotNil(t, offerA)
	offerB, err := s.GetOfferByKey(ctx, "lt", "card-shared")
	require.NoError(t, err)
	require.NotNil(t, offerB)
	assert.NotEqual(t, offerA.ID, offerB.ID)
	assert.Equal(t, "另一个套餐", offerB.ProductName)
}

func testIngestNullableTransitions(t *testing.T, s Store) {
	ctx := context.Background()
	snap := buildTestSnapshot("yd", "card-null")
	snap.OriginTag = nil

	ingestOne(t, s, snap)

	// nil -> value is a content change
	tag := "官方"
	withTag := snap
	withTag.OriginTag = &tag
	assert.Equal(t, domain.IngestUpdated, ingestOne(t, s, withTag))

	// value -> nil is a content change too
	assert.Equal(t, domain.IngestUpdated, ingestOne(t, s, snap))

	_, total, err := s.ListHistory(ctx, HistoryFilter{Source: "yd", CardID: "card-null", Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func testIngestExtraParamsNormalization(t *testing.T, s Store) {
	snap := buildTestSnapshot("yd", "card-json")
	snap.ExtraParams = json.RawMessage(`{"b":2,"a":1}`)
	ingestOne(t, s, snap)

	// jsonb reorders keys on storage; equal documents must still be unchanged
	same := snap
	same.ExtraParams = json.RawMessage(`{"a": 1, "b": 2}`)
	assert.Equal(t, domain.IngestUnchanged, ingestOne(t, s, same))

	different := snap
	different.ExtraParams = json.RawMessage(`{"a":1,"b":3}`)
	assert.Equal(t, domain.IngestUpdated, ingestOne(t, s, different))
}

// =============================================================================
// Lookups and listing
// =============================================================================

func testGetOfferByID(t *testing.T, s Store) {
	ctx := context.Background()
	ingestOne(t, s, buildTestSnapshot("yd", "card-020"))

	byKey, err := s.GetOfferByKey(ctx, "yd", "card-020")
	require.NoError(t, err)
	require.NotNil(t, byKey)

	byID, err := s.GetOfferByID(ctx, byKey.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, byKey.CardID, byID.CardID)

	missing, err := s.GetOfferByID(ctx, 999999999)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrOfferNotFound)
	assert.Nil(t, missing)

	missingKey, err := s.GetOfferByKey(ctx, "yd", "card-absent")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrOfferNotFound)
	assert.Nil(t, missingKey)
}

func testListOffersOrdering(t *testing.T, s Store) {
	ctx := context.Background()

	scores := []int{50, 90, 70}
	for i, score := range scores {
		snap := buildTestSnapshot("yd", fmt.Sprintf("card-order-%d", i))
		sc := score
		snap.Score = &sc
		ingestOne(t, s, snap)
	}
	// One offer without a score sorts last
	unscored := buildTestSnapshot("yd", "card-order-unscored")
	unscored.Score = nil
	ingestOne(t, s, unscored)

	offers, total, err := s.ListOffers(ctx, OfferFilter{Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	require.Len(t, offers, 4)
	assert.Equal(t, "card-order-1", offers[0].CardID)
	assert.Equal(t, "card-order-2", offers[1].CardID)
	assert.Equal(t, "card-order-0", offers[2].CardID)
	assert.Equal(t, "card-order-unscored", offers[3].CardID)
}

func testListOffersFilterAndPaging(t *testing.T, s Store) {
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ingestOne(t, s, buildTestSnapshot("yd", fmt.Sprintf("card-yd-%d", i)))
	}
	mobile := buildTestSnapshot("lt", "card-lt-0")
	mobile.Carrier = "移动"
	ingestOne(t, s, mobile)

	bySource, total, err := s.ListOffers(ctx, OfferFilter{Sources: []string{"yd"}, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, bySource, 3)

	byCarrier, total, err := s.ListOffers(ctx, OfferFilter{Carriers: []string{"移动"}, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, byCarrier, 1)
	assert.Equal(t, "card-lt-0", byCarrier[0].CardID)

	// Total stays the full count even when a page is smaller
	page, total, err := s.ListOffers(ctx, OfferFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Len(t, page, 2)
}

func testListHistoryFilters(t *testing.T, s Store) {
	ctx := context.Background()

	snap := buildTestSnapshot("yd", "card-hist")
	ingestOne(t, s, snap)
	changed := snap
	changed.Score = nil
	ingestOne(t, s, changed)

	latest, err := s.GetOfferByKey(ctx, "yd", "card-hist")
	require.NoError(t, err)
	require.NotNil(t, latest)

	byLatest, total, err := s.ListHistory(ctx, HistoryFilter{LatestID: &latest.ID, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, byLatest, 1)

	today := time.Now()
	byDate, total, err := s.ListHistory(ctx, HistoryFilter{Date: &today, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, byDate, 1)

	yesterday := today.AddDate(0, 0, -1)
	_, total, err = s.ListHistory(ctx, HistoryFilter{Date: &yesterday, Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
}

// =============================================================================
// Counters and event logs
// =============================================================================

func testCounters(t *testing.T, s Store) {
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.IncrementCounter(ctx, schema.CounterPageVisit))
	}
	require.NoError(t, s.IncrementCounter(ctx, schema.CounterOrderClick))

	values, err := s.GetCounters(ctx, []string{schema.CounterPageVisit, schema.CounterOrderClick, "never_written"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, values[schema.CounterPageVisit])
	assert.EqualValues(t, 1, values[schema.CounterOrderClick])
	assert.EqualValues(t, 0, values["never_written"])
}

func testCreateEventLogs(t *testing.T, s Store) {
	ctx := context.Background()

	ip := "203.0.113.7"
	requestID := "req-123"
	payload, _ := json.Marshal(map[string]string{"carrier": "电信"})
	events := []schema.UserEventLog{
		{
			EventType:   schema.EventTypePageView,
			EventName:   "offer_list_visit",
			EventStatus: schema.EventStatusSuccess,
			RequestIP:   &ip,
			RequestID:   &requestID,
			Payload:     datatypes.JSON(payload),
		},
		{
			EventType:   schema.EventTypeUserAction,
			EventName:   "order_click",
			EventStatus: schema.EventStatusSuccess,
		},
	}

	require.NoError(t, s.CreateEventLogs(ctx, events))
	// Empty batches are a no-op
	require.NoError(t, s.CreateEventLogs(ctx, nil))
}

// =============================================================================
// Suite
// =============================================================================

// RunStoreTests runs the shared store test suite against a Store implementation
func RunStoreTests(t *testing.T, initDB func(t *testing.T) Store, cleanupDB func(t *testing.T)) {
	tests := []struct {
		name string
		fn   func(*testing.T, Store)
	}{
		{"IngestCreate", testIngestCreate},
		{"IngestUnchanged", testIngestUnchanged},
		{"IngestUpdated", testIngestUpdated},
		{"IngestVersionChain", testIngestVersionChain},
		{"IngestIndependentSources", testIngestIndependentSources},
		{"IngestNullableTransitions", testIngestNullableTransitions},
		{"IngestExtraParamsNormalization", testIngestExtraParamsNormalization},
		{"GetOfferByID", testGetOfferByID},
		{"ListOffersOrdering", testListOffersOrdering},
		{"ListOffersFilterAndPaging", testListOffersFilterAndPaging},
		{"ListHistoryFilters", testListHistoryFilters},
		{"Counters", testCounters},
		{"CreateEventLogs", testCreateEventLogs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := initDB(t)
			defer cleanupDB(t)
			tt.fn(t, store)
		})
	}
}
