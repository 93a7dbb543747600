package rest

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qiongbi/card-ledger/internal/api/middleware"
	"github.com/qiongbi/card-ledger/internal/buttons"
	"github.com/qiongbi/card-ledger/internal/cache"
	"github.com/qiongbi/card-ledger/internal/domain"
	"github.com/qiongbi/card-ledger/internal/events"
	"github.com/qiongbi/card-ledger/internal/ledger"
	"github.com/qiongbi/card-ledger/internal/store"
	"github.com/qiongbi/card-ledger/internal/store/schema"
)

// Handler defines the interface for REST API handlers
type Handler interface {
	// IngestOffers applies a batch of scraped offer snapshots
	// POST /api/v1/offers
	IngestOffers(c *gin.Context)

	// ListOffers retrieves current offers with optional filters
	// GET /api/v1/offers?source=<source>&carrier=<carrier>&limit=<limit>&offset=<offset>
	ListOffers(c *gin.Context)

	// GetOrderButtons retrieves the order buttons for an offer
	// GET /api/v1/offers/:id/buttons
	GetOrderButtons(c *gin.Context)

	// ListHistory retrieves archived offer versions
	// GET /api/v1/history?date=<yyyy-mm-dd>&source=<source>&card_id=<card_id>&latest_id=<id>&limit=<limit>&offset=<offset>
	ListHistory(c *gin.Context)

	// RecordVisit records a listing page visit
	// POST /api/v1/stats/visit
	RecordVisit(c *gin.Context)

	// RecordOrder records an order-button click
	// POST /api/v1/stats/order
	RecordOrder(c *gin.Context)

	// GetStats returns aggregate visit/order counters
	// GET /api/v1/stats
	GetStats(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// CacheTTLs holds per-response cache lifetimes
type CacheTTLs struct {
	Offers  time.Duration
	Buttons time.Duration
	Stats   time.Duration
}

// handler implements the Handler interface
type handler struct {
	ledger   *ledger.Ledger
	store    store.Store
	buttons  *buttons.Service
	cache    cache.Cache
	ttls     CacheTTLs
	recorder *events.Recorder
}

// NewHandler creates a new REST API handler
func NewHandler(l *ledger.Ledger, s store.Store, b *buttons.Service, ca cache.Cache, ttls CacheTTLs, rec *events.Recorder) Handler {
	return &handler{
		ledger:   l,
		store:    s,
		buttons:  b,
		cache:    ca,
		ttls:     ttls,
		recorder: rec,
	}
}

// IngestOffers applies a batch of scraped offer snapshots
func (h *handler) IngestOffers(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}
	if len(req.Offers) == 0 {
		respondBadRequest(c, "No offers submitted")
		return
	}

	snaps := make([]domain.OfferSnapshot, len(req.Offers))
	for i, offer := range req.Offers {
		snaps[i] = offer.ToSnapshot()
	}

	batch := h.ledger.IngestBatch(c.Request.Context(), snaps)

	h.recorder.Record(events.Event{
		Type:      schema.EventTypeAPICall,
		Name:      "offers_ingest",
		RequestID: middleware.GetRequestID(c),
		RequestIP: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Method:    c.Request.Method,
		Path:      c.Request.URL.Path,
		Payload: map[string]interface{}{
			"submitted": len(snaps),
			"created":   batch.Created,
			"updated":   batch.Updated,
			"unchanged": batch.Unchanged,
			"failed":    len(batch.Errors),
		},
	})

	c.JSON(http.StatusOK, NewIngestResponse(batch))
}

// ListOffers retrieves current offers with optional filters
func (h *handler) ListOffers(c *gin.Context) {
	queryParams, err := ParseListOffersQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	key := cache.OffersListKey(queryParams.Sources, queryParams.Carriers, queryParams.Limit, queryParams.Offset)
	var cached ListOffersResponse
	if h.cache.Get(c.Request.Context(), key, &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	offers, total, err := h.store.ListOffers(c.Request.Context(), store.OfferFilter{
		Sources:  queryParams.Sources,
		Carriers: queryParams.Carriers,
		Limit:    queryParams.Limit,
		Offset:   queryParams.Offset,
	})
	if err != nil {
		respondInternalError(c, err, "Failed to list offers")
		return
	}

	response := ListOffersResponse{
		Offers: make([]OfferDTO, len(offers)),
		Total:  total,
		Limit:  queryParams.Limit,
		Offset: queryParams.Offset,
	}
	for i, offer := range offers {
		response.Offers[i] = NewOfferDTO(offer)
	}

	h.cache.Set(c.Request.Context(), key, response, h.ttls.Offers)
	c.JSON(http.StatusOK, response)
}

// GetOrderButtons retrieves the order buttons for an offer
func (h *handler) GetOrderButtons(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondBadRequest(c, "Invalid offer id")
		return
	}

	key := cache.ButtonsKey(id)
	var cached ButtonsResponse
	if h.cache.Get(c.Request.Context(), key, &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	resolved, err := h.buttons.ButtonsForCard(c.Request.Context(), id)
	if err != nil {
		respondInternalError(c, err, "Failed to resolve order buttons", zap.Int64("offer_id", id))
		return
	}

	response := ButtonsResponse{Buttons: resolved}
	h.cache.Set(c.Request.Context(), key, response, h.ttls.Buttons)
	c.JSON(http.StatusOK, response)
}

// ListHistory retrieves archived offer versions
func (h *handler) ListHistory(c *gin.Context) {
	queryParams, err := ParseListHistoryQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	rows, total, err := h.store.ListHistory(c.Request.Context(), store.HistoryFilter{
		Date:     queryParams.Date,
		Source:   queryParams.Source,
		CardID:   queryParams.CardID,
		LatestID: queryParams.LatestID,
		Limit:    queryParams.Limit,
		Offset:   queryParams.Offset,
	})
	if err != nil {
		respondInternalError(c, err, "Failed to list history")
		return
	}

	response := ListHistoryResponse{
		History: make([]HistoryDTO, len(rows)),
		Total:   total,
		Limit:   queryParams.Limit,
		Offset:  queryParams.Offset,
	}
	for i, row := range rows {
		response.History[i] = NewHistoryDTO(row)
	}

	c.JSON(http.StatusOK, response)
}

// statEventRequest is the optional body of the stats endpoints
type statEventRequest struct {
	CardID  *int64                 `json:"card_id,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// RecordVisit records a listing page visit
func (h *handler) RecordVisit(c *gin.Context) {
	var req statEventRequest
	_ = c.ShouldBindJSON(&req) // body is optional

	if err := h.store.IncrementCounter(c.Request.Context(), schema.CounterPageVisit); err != nil {
		respondInternalError(c, err, "Failed to record visit")
		return
	}

	h.recorder.Record(events.Event{
		Type:      schema.EventTypePageView,
		Name:      "offer_list_visit",
		RequestID: middleware.GetRequestID(c),
		RequestIP: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Method:    c.Request.Method,
		Path:      c.Request.URL.Path,
		Payload:   req.Payload,
	})

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RecordOrder records an order-button click
func (h *handler) RecordOrder(c *gin.Context) {
	var req statEventRequest
	_ = c.ShouldBindJSON(&req) // body is optional

	if err := h.store.IncrementCounter(c.Request.Context(), schema.CounterOrderClick); err != nil {
		respondInternalError(c, err, "Failed to record order click")
		return
	}

	h.recorder.Record(events.Event{
		Type:      schema.EventTypeUserAction,
		Name:      "order_click",
		CardID:    req.CardID,
		RequestID: middleware.GetRequestID(c),
		RequestIP: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Method:    c.Request.Method,
		Path:      c.Request.URL.Path,
		Payload:   req.Payload,
	})

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetStats returns aggregate visit/order counters
func (h *handler) GetStats(c *gin.Context) {
	var cached StatsResponse
	if h.cache.Get(c.Request.Context(), cache.StatsKey, &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	counters, err := h.store.GetCounters(c.Request.Context(), []string{
		schema.CounterPageVisit,
		schema.CounterOrderClick,
	})
	if err != nil {
		respondInternalError(c, err, "Failed to read counters")
		return
	}

	response := StatsResponse{
		PageVisits:  counters[schema.CounterPageVisit],
		OrderClicks: counters[schema.CounterOrderClick],
	}

	h.cache.Set(c.Request.Context(), cache.StatsKey, response, h.ttls.Stats)
	c.JSON(http.StatusOK, response)
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"service": "card-ledger-api",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "card-ledger-api",
	})
}
