package schema

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// OfferHistory represents the offers_history table - append-only archive of
// superseded latest rows. Rows are immutable once written.
type OfferHistory struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// LatestID back-references the offers_latest row that superseded this
	// version. Back-reference only; no ownership or cascade implied.
	LatestID int64 `gorm:"column:latest_id;not null;index:idx_offers_history_latest_id"`
	// Source identifies the originating scraping platform
	Source string `gorm:"column:source;not null;type:text;index:idx_offers_history_source_card,priority:1"`
	// CardID is the source-scoped offer identifier
	CardID string `gorm:"column:card_id;not null;type:text;index:idx_offers_history_source_card,priority:2"`
	// ProductName is the offer's display name
	ProductName string `gorm:"column:product_name;not null;type:text"`
	// Carrier is the network operator
	Carrier string `gorm:"column:carrier;not null;type:text"`
	// MonthlyRent is the monthly fee as display text
	MonthlyRent string `gorm:"column:monthly_rent;not null;type:text"`
	// GeneralFlow is the data allowance as text
	GeneralFlow string `gorm:"column:general_flow;not null;type:text"`
	// CallMinutes is the included call time as text
	CallMinutes string `gorm:"column:call_minutes;not null;type:text"`
	// AgeRange is the eligible age range as text
	AgeRange string `gorm:"column:age_range;not null;type:text"`
	// OriginTag is the offer's origin/affiliation label
	OriginTag *string `gorm:"column:origin_tag;type:text"`
	// DisabledAreas lists regions the offer cannot ship to
	DisabledAreas *string `gorm:"column:disabled_areas;type:text"`
	// RebateAmount is the commission rebate
	RebateAmount *decimal.Decimal `gorm:"column:rebate_amount;type:numeric(10,2)"`
	// DetailText is the long-form description
	DetailText *string `gorm:"column:detail_text;type:text"`
	// Score is the ranking score used for display ordering
	Score *int `gorm:"column:score"`
	// ExtraParams is an opaque blob passed through unchanged
	ExtraParams datatypes.JSON `gorm:"column:extra_params;type:jsonb"`
	// DataTime is the as-of time stamped by the source extraction
	DataTime *time.Time `gorm:"column:data_time;type:timestamptz"`
	// CreatedAt is carried over from the archived latest row, not stamped anew
	CreatedAt time.Time `gorm:"column:created_at;not null;type:timestamptz"`
	// ArchivedAt is the timestamp when this version was superseded
	ArchivedAt time.Time `gorm:"column:archived_at;not null;default:now();type:timestamptz;index:idx_offers_history_archived_at"`
}

// TableName specifies the table name for the OfferHistory model
func (OfferHistory) TableName() string {
	return "offers_history"
}

// NewOfferHistory copies a latest row into a history row, stamping the
// superseding latest row's id as LatestID
func NewOfferHistory(latest *OfferLatest) OfferHistory {
	return OfferHistory{
		LatestID:      latest.ID,
		Source:        latest.Source,
		CardID:        latest.CardID,
		ProductName:   latest.ProductName,
		Carrier:       latest.Carrier,
		MonthlyRent:   latest.MonthlyRent,
		GeneralFlow:   latest.GeneralFlow,
		CallMinutes:   latest.CallMinutes,
		AgeRange:      latest.AgeRange,
		OriginTag:     latest.OriginTag,
		DisabledAreas: latest.DisabledAreas,
		RebateAmount:  latest.RebateAmount,
		DetailText:    latest.DetailText,
		Score:         latest.Score,
		ExtraParams:   latest.ExtraParams,
		DataTime:      latest.DataTime,
		CreatedAt:     latest.CreatedAt,
	}
}
