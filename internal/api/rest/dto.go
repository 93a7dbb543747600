package rest

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/qiongbi/card-ledger/internal/buttons"
	"github.com/qiongbi/card-ledger/internal/domain"
	"github.com/qiongbi/card-ledger/internal/ledger"
	"github.com/qiongbi/card-ledger/internal/store/schema"
)

// OfferSnapshotRequest is one scraped offer submitted for ingest
type OfferSnapshotRequest struct {
	Source        string           `json:"source"`
	CardID        string           `json:"card_id"`
	ProductName   string           `json:"product_name"`
	Carrier       string           `json:"carrier"`
	MonthlyRent   string           `json:"monthly_rent"`
	GeneralFlow   string           `json:"general_flow"`
	CallMinutes   string           `json:"call_minutes"`
	AgeRange      string           `json:"age_range"`
	OriginTag     *string          `json:"origin_tag,omitempty"`
	DisabledAreas *string          `json:"disabled_areas,omitempty"`
	RebateAmount  *decimal.Decimal `json:"rebate_amount,omitempty"`
	DetailText    *string          `json:"detail_text,omitempty"`
	Score         *int             `json:"score,omitempty"`
	ExtraParams   json.RawMessage  `json:"extra_params,omitempty"`
	DataTime      *time.Time       `json:"data_time,omitempty"`
}

// ToSnapshot maps the request onto a domain snapshot
func (r *OfferSnapshotRequest) ToSnapshot() domain.OfferSnapshot {
	return domain.OfferSnapshot{
		Source:        r.Source,
		CardID:        r.CardID,
		ProductName:   r.ProductName,
		Carrier:       r.Carrier,
		MonthlyRent:   r.MonthlyRent,
		GeneralFlow:   r.GeneralFlow,
		CallMinutes:   r.CallMinutes,
		AgeRange:      r.AgeRange,
		OriginTag:     r.OriginTag,
		DisabledAreas: r.DisabledAreas,
		RebateAmount:  r.RebateAmount,
		DetailText:    r.DetailText,
		Score:         r.Score,
		ExtraParams:   r.ExtraParams,
		DataTime:      r.DataTime,
	}
}

// IngestRequest is the body of POST /api/v1/offers
type IngestRequest struct {
	Offers []OfferSnapshotRequest `json:"offers"`
}

// IngestResponse summarizes an ingest batch
type IngestResponse struct {
	Created   int              `json:"created"`
	Updated   int              `json:"updated"`
	Unchanged int              `json:"unchanged"`
	Errors    []IngestErrorDTO `json:"errors,omitempty"`
}

// IngestErrorDTO describes one rejected snapshot
type IngestErrorDTO struct {
	Index   int    `json:"index"`
	Source  string `json:"source"`
	CardID  string `json:"card_id"`
	Message string `json:"message"`
}

// NewIngestResponse maps a ledger batch result to the response DTO
func NewIngestResponse(batch ledger.BatchResult) IngestResponse {
	resp := IngestResponse{
		Created:   batch.Created,
		Updated:   batch.Updated,
		Unchanged: batch.Unchanged,
	}
	for _, e := range batch.Errors {
		resp.Errors = append(resp.Errors, IngestErrorDTO{
			Index:   e.Index,
			Source:  e.Source,
			CardID:  e.CardID,
			Message: e.Err.Error(),
		})
	}
	return resp
}

// OfferDTO is one offer in API responses
type OfferDTO struct {
	ID            int64            `json:"id"`
	Source        string           `json:"source"`
	CardID        string           `json:"card_id"`
	ProductName   string           `json:"product_name"`
	Carrier       string           `json:"carrier"`
	MonthlyRent   string           `json:"monthly_rent"`
	GeneralFlow   string           `json:"general_flow"`
	CallMinutes   string           `json:"call_minutes"`
	AgeRange      string           `json:"age_range"`
	OriginTag     *string          `json:"origin_tag,omitempty"`
	DisabledAreas *string          `json:"disabled_areas,omitempty"`
	RebateAmount  *decimal.Decimal `json:"rebate_amount,omitempty"`
	DetailText    *string          `json:"detail_text,omitempty"`
	Score         *int             `json:"score,omitempty"`
	ExtraParams   json.RawMessage  `json:"extra_params,omitempty"`
	DataTime      *time.Time       `json:"data_time,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// NewOfferDTO maps a latest row to its API representation
func NewOfferDTO(offer schema.OfferLatest) OfferDTO {
	return OfferDTO{
		ID:            offer.ID,
		Source:        offer.Source,
		CardID:        offer.CardID,
		ProductName:   offer.ProductName,
		Carrier:       offer.Carrier,
		MonthlyRent:   offer.MonthlyRent,
		GeneralFlow:   offer.GeneralFlow,
		CallMinutes:   offer.CallMinutes,
		AgeRange:      offer.AgeRange,
		OriginTag:     offer.OriginTag,
		DisabledAreas: offer.DisabledAreas,
		RebateAmount:  offer.RebateAmount,
		DetailText:    offer.DetailText,
		Score:         offer.Score,
		ExtraParams:   json.RawMessage(offer.ExtraParams),
		DataTime:      offer.DataTime,
		CreatedAt:     offer.CreatedAt,
	}
}

// ListOffersResponse is the body of GET /api/v1/offers
type ListOffersResponse struct {
	Offers []OfferDTO `json:"offers"`
	Total  int64      `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// HistoryDTO is one archived offer version in API responses
type HistoryDTO struct {
	ID          int64      `json:"id"`
	LatestID    int64      `json:"latest_id"`
	Source      string     `json:"source"`
	CardID      string     `json:"card_id"`
	ProductName string     `json:"product_name"`
	Carrier     string     `json:"carrier"`
	MonthlyRent string     `json:"monthly_rent"`
	GeneralFlow string     `json:"general_flow"`
	CallMinutes string     `json:"call_minutes"`
	AgeRange    string     `json:"age_range"`
	Score       *int       `json:"score,omitempty"`
	DataTime    *time.Time `json:"data_time,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ArchivedAt  time.Time  `json:"archived_at"`
}

// NewHistoryDTO maps a history row to its API representation
func NewHistoryDTO(row schema.OfferHistory) HistoryDTO {
	return HistoryDTO{
		ID:          row.ID,
		LatestID:    row.LatestID,
		Source:      row.Source,
		CardID:      row.CardID,
		ProductName: row.ProductName,
		Carrier:     row.Carrier,
		MonthlyRent: row.MonthlyRent,
		GeneralFlow: row.GeneralFlow,
		CallMinutes: row.CallMinutes,
		AgeRange:    row.AgeRange,
		Score:       row.Score,
		DataTime:    row.DataTime,
		CreatedAt:   row.CreatedAt,
		ArchivedAt:  row.ArchivedAt,
	}
}

// ListHistoryResponse is the body of GET /api/v1/history
type ListHistoryResponse struct {
	History []HistoryDTO `json:"history"`
	Total   int64        `json:"total"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
}

// ButtonsResponse is the body of GET /api/v1/offers/:id/buttons
type ButtonsResponse struct {
	Buttons []buttons.Button `json:"buttons"`
}

// StatsResponse is the body of GET /api/v1/stats
type StatsResponse struct {
	PageVisits  int64 `json:"page_visits"`
	OrderClicks int64 `json:"order_clicks"`
}
