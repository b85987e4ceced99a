package dto

import (
	"time"

	"github.com/Additional-Code/subext/internal/entity"
)

// DispatchResponse represents a dispatch log entry as exposed via transport layers.
type DispatchResponse struct {
	ID         int64     `json:"id"`
	OrderID    string    `json:"order_id"`
	LineItemID string    `json:"line_item_id"`
	CustomerID string    `json:"customer_id"`
	Frequency  string    `json:"frequency"`
	StartDate  string    `json:"start_date"`
	EndDate    string    `json:"end_date"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewDispatchResponse maps a dispatch entity onto its response shape.
func NewDispatchResponse(d entity.Dispatch) DispatchResponse {
	return DispatchResponse{
		ID:         d.ID,
		OrderID:    d.OrderID,
		LineItemID: d.LineItemID,
		CustomerID: d.CustomerID,
		Frequency:  d.Frequency,
		StartDate:  d.StartDate,
		EndDate:    d.EndDate,
		Status:     d.Status,
		Error:      d.Error,
		CreatedAt:  d.CreatedAt,
	}
}
