package schema

import (
	"time"

	"gorm.io/datatypes"
)

// EventType classifies a recorded user event
type EventType string

const (
	// EventTypePageView indicates a visit to the offer listing page
	EventTypePageView EventType = "page_view"
	// EventTypeUserAction indicates a user-initiated action such as an order click
	EventTypeUserAction EventType = "user_action"
	// EventTypeAPICall indicates a programmatic API call
	EventTypeAPICall EventType = "api_call"
)

// EventStatus is the outcome of the recorded event
type EventStatus string

const (
	// EventStatusSuccess indicates the event completed normally
	EventStatusSuccess EventStatus = "success"
	// EventStatusFailed indicates the event completed with an error
	EventStatusFailed EventStatus = "failed"
)

// UserEventLog represents the user_event_logs table - append-only record of
// visit and order-click events used for simple traffic statistics
type UserEventLog struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// EventType classifies the event (page_view, user_action, api_call)
	EventType EventType `gorm:"column:event_type;not null;type:text;index:idx_user_event_logs_type"`
	// EventName names the specific event, e.g. "offer_list_visit"
	EventName string `gorm:"column:event_name;not null;type:text"`
	// EventStatus is the outcome (success, failed)
	EventStatus EventStatus `gorm:"column:event_status;not null;default:'success';type:text"`
	// CardID references the offer the event concerns, when applicable
	CardID *int64 `gorm:"column:card_id;index:idx_user_event_logs_card_id"`
	// RequestID correlates the event with the request that produced it
	RequestID *string `gorm:"column:request_id;type:text"`
	// RequestIP is the client address
	RequestIP *string `gorm:"column:request_ip;type:text"`
	// UserAgent is the client user-agent string
	UserAgent *string `gorm:"column:user_agent;type:text"`
	// RequestMethod is the HTTP method
	RequestMethod *string `gorm:"column:request_method;type:text"`
	// RequestPath is the request path
	RequestPath *string `gorm:"column:request_path;type:text"`
	// Payload carries additional event context as JSON
	Payload datatypes.JSON `gorm:"column:payload;type:jsonb"`
	// CreatedAt is the timestamp when the event occurred
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz;index:idx_user_event_logs_created_at"`
}

// TableName specifies the table name for the UserEventLog model
func (UserEventLog) TableName() string {
	return "user_event_logs"
}
