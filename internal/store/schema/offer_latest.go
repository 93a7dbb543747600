package schema

import (
	"bytes"
	"encoding/json"
	"reflect"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/qiongbi/card-ledger/internal/domain"
)

// OfferLatest represents the offers_latest table - the current known state of
// each offer, at most one row per (source, card_id) pair
type OfferLatest struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Source identifies the originating scraping platform
	Source string `gorm:"column:source;not null;type:text;uniqueIndex:idx_offers_latest_source_card,priority:1"`
	// CardID is the source-scoped offer identifier
	CardID string `gorm:"column:card_id;not null;type:text;uniqueIndex:idx_offers_latest_source_card,priority:2"`
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
	Score *int `gorm:"column:score;index:idx_offers_latest_score"`
	// ExtraParams is an opaque blob passed through unchanged
	ExtraParams datatypes.JSON `gorm:"column:extra_params;type:jsonb"`
	// DataTime is the as-of time stamped by the source extraction
	DataTime *time.Time `gorm:"column:data_time;type:timestamptz"`
	// CreatedAt is the timestamp when this version of the row was written
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the OfferLatest model
func (OfferLatest) TableName() string {
	return "offers_latest"
}

// NewOfferLatest maps an incoming snapshot onto a latest row. ID and CreatedAt
// are left zero; the store fills them in.
func NewOfferLatest(snap domain.OfferSnapshot) OfferLatest {
	return OfferLatest{
		Source:        snap.Source,
		CardID:        snap.CardID,
		ProductName:   snap.ProductName,
		Carrier:       snap.Carrier,
		MonthlyRent:   snap.MonthlyRent,
		GeneralFlow:   snap.GeneralFlow,
		CallMinutes:   snap.CallMinutes,
		AgeRange:      snap.AgeRange,
		OriginTag:     snap.OriginTag,
		DisabledAreas: snap.DisabledAreas,
		RebateAmount:  snap.RebateAmount,
		DetailText:    snap.DetailText,
		Score:         snap.Score,
		ExtraParams:   datatypes.JSON(snap.ExtraParams),
		DataTime:      snap.DataTime,
	}
}

// ContentEquals reports whether two rows carry the same content fields.
// ID, CreatedAt and DataTime are deliberately excluded: re-ingests of
// unchanged data must compare equal even though their timestamps differ.
func (o *OfferLatest) ContentEquals(other *OfferLatest) bool {
	return o.Source == other.Source &&
		o.CardID == other.CardID &&
		o.ProductName == other.ProductName &&
		o.Carrier == other.Carrier &&
		o.MonthlyRent == other.MonthlyRent &&
		o.GeneralFlow == other.GeneralFlow &&
		o.CallMinutes == other.CallMinutes &&
		o.AgeRange == other.AgeRange &&
		stringPtrEqual(o.OriginTag, other.OriginTag) &&
		stringPtrEqual(o.DisabledAreas, other.DisabledAreas) &&
		decimalPtrEqual(o.RebateAmount, other.RebateAmount) &&
		stringPtrEqual(o.DetailText, other.DetailText) &&
		intPtrEqual(o.Score, other.Score) &&
		jsonEqual(o.ExtraParams, other.ExtraParams)
}

// jsonEqual compares two JSON documents by value. jsonb storage normalizes
// key order and whitespace, so byte comparison would report false changes
// when a row read back from the database meets freshly submitted bytes.
func jsonEqual(a, b datatypes.JSON) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == 0 && len(b) == 0
	}

	var av, bv interface{}
	if err := json.Unmarshal(a, &av); err != nil {
		return bytes.Equal(a, b)
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return bytes.Equal(a, b)
	}
	return reflect.DeepEqual(av, bv)
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func decimalPtrEqual(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
