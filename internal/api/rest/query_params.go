package rest

import (
	"time"

	"github.com/gin-gonic/gin"
)

const MAX_PAGE_SIZE = 100

// ListOffersQueryParams holds query parameters for GET /offers
type ListOffersQueryParams struct {
	// Filters
	Sources  []string `form:"source"`
	Carriers []string `form:"carrier"`

	// Pagination
	Limit  int `form:"limit,default=20"`
	Offset int `form:"offset,default=0"`
}

// ParseListOffersQuery parses query parameters for GET /offers
func ParseListOffersQuery(c *gin.Context) (*ListOffersQueryParams, error) {
	var params ListOffersQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, err
	}

	// Cap limit
	if params.Limit > MAX_PAGE_SIZE {
		params.Limit = MAX_PAGE_SIZE
	}
	if params.Limit <= 0 {
		params.Limit = 20
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	return &params, nil
}

// ListHistoryQueryParams holds query parameters for GET /history
type ListHistoryQueryParams struct {
	// Filters
	Date     *time.Time `form:"date" time_format:"2006-01-02" time_utc:"1"`
	Source   string     `form:"source"`
	CardID   string     `form:"card_id"`
	LatestID *int64     `form:"latest_id"`

	// Pagination
	Limit  int `form:"limit,default=20"`
	Offset int `form:"offset,default=0"`
}

// ParseListHistoryQuery parses query parameters for GET /history
func ParseListHistoryQuery(c *gin.Context) (*ListHistoryQueryParams, error) {
	var params ListHistoryQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, err
	}

	// Cap limit
	if params.Limit > MAX_PAGE_SIZE {
		params.Limit = MAX_PAGE_SIZE
	}
	if params.Limit <= 0 {
		params.Limit = 20
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	return &params, nil
}
