package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/qiongbi/card-ledger/internal/logger"
	"github.com/qiongbi/card-ledger/internal/store"
	"github.com/qiongbi/card-ledger/internal/store/schema"
)

// Config holds event recorder configuration
type Config struct {
	// PoolSize is the number of concurrent writer workers
	PoolSize int
	// QueueSize is the pending-event buffer
	QueueSize int
	// WriteTimeout bounds each event log insert
	WriteTimeout time.Duration
}

// Event is one user event to record
type Event struct {
	Type      schema.EventType
	Name      string
	Status    schema.EventStatus
	CardID    *int64
	RequestID string
	RequestIP string
	UserAgent string
	Method    string
	Path      string
	Payload   map[string]interface{}
}

// Recorder writes user events to the store off the request path. Writes are
// best-effort: failures are logged and never surfaced to requests.
type Recorder struct {
	store  store.Store
	config Config
	pool   pond.Pool
}

// NewRecorder creates an event recorder with its own worker pool
func NewRecorder(s store.Store, cfg Config) *Recorder {
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 2
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 1024
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	return &Recorder{
		store:  s,
		config: cfg,
		pool: pond.NewPool(
			cfg.PoolSize,
			pond.WithQueueSize(cfg.QueueSize),
		),
	}
}

// Record queues an event for asynchronous persistence
func (r *Recorder) Record(event Event) {
	row := buildEventLog(event)

	r.pool.Submit(func() {
		// Detached from the request context: the request has already been
		// answered by the time this write runs
		ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
		defer cancel()

		if err := r.store.CreateEventLogs(ctx, []schema.UserEventLog{row}); err != nil {
			logger.Error(err,
				zap.String("event_name", event.Name),
				zap.String("request_id", event.RequestID),
			)
		}
	})
}

// Close drains pending event writes
func (r *Recorder) Close() {
	r.pool.StopAndWait()
}

func buildEventLog(event Event) schema.UserEventLog {
	row := schema.UserEventLog{
		EventType:   event.Type,
		EventName:   event.Name,
		EventStatus: event.Status,
		CardID:      event.CardID,
	}
	if row.EventStatus == "" {
		row.EventStatus = schema.EventStatusSuccess
	}
	if event.RequestID != "" {
		row.RequestID = &event.RequestID
	}
	if event.RequestIP != "" {
		row.RequestIP = &event.RequestIP
	}
	if event.UserAgent != "" {
		row.UserAgent = &event.UserAgent
	}
	if event.Method != "" {
		row.RequestMethod = &event.Method
	}
	if event.Path != "" {
		row.RequestPath = &event.Path
	}
	if len(event.Payload) > 0 {
		if raw, err := json.Marshal(event.Payload); err == nil {
			row.Payload = datatypes.JSON(raw)
		}
	}
	return row
}
