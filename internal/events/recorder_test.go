package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qiongbi/card-ledger/internal/logger"
	"github.com/qiongbi/card-ledger/internal/store"
	"github.com/qiongbi/card-ledger/internal/store/schema"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: true}); err != nil {
		panic(err)
	}
	m.Run()
}

// captureStore collects created event logs
type captureStore struct {
	store.Store

	mu   sync.Mutex
	rows []schema.UserEventLog
}

func (c *captureStore) CreateEventLogs(_ context.Context, events []schema.UserEventLog) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = append(c.rows, events...)
	return nil
}

func (c *captureStore) captured() []schema.UserEventLog {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]schema.UserEventLog(nil), c.rows...)
}

func TestRecorderPersistsEvents(t *testing.T) {
	capture := &captureStore{}
	recorder := NewRecorder(capture, Config{PoolSize: 1})

	cardID := int64(7)
	recorder.Record(Event{
		Type:      schema.EventTypeUserAction,
		Name:      "order_click",
		CardID:    &cardID,
		RequestID: "req-1",
		RequestIP: "203.0.113.9",
		Method:    "POST",
		Path:      "/api/v1/stats/order",
		Payload:   map[string]interface{}{"button": "立即办理"},
	})
	recorder.Close()

	rows := capture.captured()
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, schema.EventTypeUserAction, row.EventType)
	assert.Equal(t, "order_click", row.EventName)
	// Status defaults to success when unset
	assert.Equal(t, schema.EventStatusSuccess, row.EventStatus)
	require.NotNil(t, row.CardID)
	assert.EqualValues(t, 7, *row.CardID)
	require.NotNil(t, row.RequestID)
	assert.Equal(t, "req-1", *row.RequestID)
	require.NotNil(t, row.RequestPath)
	assert.Equal(t, "/api/v1/stats/order", *row.RequestPath)
	assert.JSONEq(t, `{"button":"立即办理"}`, string(row.Payload))
	// Optional fields left empty stay null
	assert.Nil(t, row.UserAgent)
}

func TestRecorderCloseDrainsQueue(t *testing.T) {
	capture := &captureStore{}
	recorder := NewRecorder(capture, Config{PoolSize: 2, WriteTimeout: time.Second})

	for i := 0; i < 20; i++ {
		recorder.Record(Event{Type: schema.EventTypePageView, Name: "offer_list_visit"})
	}
	recorder.Close()

	assert.Len(t, capture.captured(), 20)
}
