package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// IngestResult describes the outcome of ingesting a single offer snapshot
type IngestResult string

const (
	// IngestCreated indicates the snapshot created a new latest row
	IngestCreated IngestResult = "created"
	// IngestUpdated indicates the snapshot superseded an existing latest row,
	// which was archived to history
	IngestUpdated IngestResult = "updated"
	// IngestUnchanged indicates the snapshot matched the stored latest row and
	// no write occurred
	IngestUnchanged IngestResult = "unchanged"
)

// OfferSnapshot is one offer from one source platform at one point in time,
// as delivered by the external scraping workflow.
type OfferSnapshot struct {
	// Source identifies the originating platform
	Source string
	// CardID is the source-scoped offer identifier
	CardID string
	// ProductName is the offer's display name
	ProductName string
	// Carrier is the network operator
	Carrier string
	// MonthlyRent is the monthly fee, kept as display text (source formats vary)
	MonthlyRent string
	// GeneralFlow is the data allowance, as text
	GeneralFlow string
	// CallMinutes is the included call time, as text
	CallMinutes string
	// AgeRange is the eligible age range, as text
	AgeRange string
	// OriginTag is the offer's origin/affiliation label
	OriginTag *string
	// DisabledAreas lists regions the offer cannot ship to
	DisabledAreas *string
	// RebateAmount is the commission rebate
	RebateAmount *decimal.Decimal
	// DetailText is the long-form description
	DetailText *string
	// Score is the ranking score used for display ordering
	Score *int
	// ExtraParams is an opaque blob passed through unchanged; the ledger never
	// interprets its contents
	ExtraParams json.RawMessage
	// DataTime is the as-of time stamped by the source extraction
	DataTime *time.Time
}

// requiredFields maps display fields the ledger refuses to store without.
func (s *OfferSnapshot) requiredFields() []struct{ name, value string } {
	return []struct{ name, value string }{
		{"source", s.Source},
		{"card_id", s.CardID},
		{"product_name", s.ProductName},
		{"carrier", s.Carrier},
		{"monthly_rent", s.MonthlyRent},
		{"general_flow", s.GeneralFlow},
		{"call_minutes", s.CallMinutes},
		{"age_range", s.AgeRange},
	}
}

// Validate checks that all required display fields are present
func (s *OfferSnapshot) Validate() error {
	for _, f := range s.requiredFields() {
		if f.value == "" {
			return fmt.Errorf("%w: missing required field %q", ErrInvalidSnapshot, f.name)
		}
	}
	return nil
}

// Key returns the (source, card_id) identity of the snapshot
func (s *OfferSnapshot) Key() string {
	return s.Source + "/" + s.CardID
}
