package schema

import "time"

// Counter names tracked by the stats endpoints.
const (
	// CounterPageVisit counts offer-listing page visits
	CounterPageVisit = "page_visit"
	// CounterOrderClick counts "order now" button clicks
	CounterOrderClick = "order_click"
)

// StatCounter stores named monotonic counters for visit/order statistics
type StatCounter struct {
	Name      string    `gorm:"column:name;primaryKey;type:text"`
	Value     int64     `gorm:"column:value;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for the StatCounter model
func (StatCounter) TableName() string {
	return "stat_counters"
}
