package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Dispatch outcomes.
const (
	DispatchRegistered = "registered"
	DispatchFailed     = "failed"
	DispatchSkipped    = "skipped"
)

// Dispatch records one attempt to register a line item with the subscription service.
type Dispatch struct {
	bun.BaseModel `bun:"table:subscription_dispatches"`

	ID         int64     `bun:",pk,autoincrement" json:"id"`
	OrderID    string    `bun:"order_id,notnull" json:"orderId"`
	LineItemID string    `bun:"line_item_id,notnull" json:"lineItemId"`
	CustomerID string    `bun:"customer_id" json:"customerId"`
	Frequency  string    `bun:"frequency" json:"frequency"`
	StartDate  string    `bun:"start_date" json:"startDate"`
	EndDate    string    `bun:"end_date" json:"endDate"`
	Status     string    `bun:"status,notnull" json:"status"`
	Error      string    `bun:"error" json:"error,omitempty"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"createdAt"`
}
