package entity

// SubscriptionRequest is the payload registered with the subscription service
// for each subscription line item.
type SubscriptionRequest struct {
	CustomerID string `json:"customerId"`
	ProductID  string `json:"productId"`
	Status     bool   `json:"status"`
	Frequency  string `json:"frequency"`
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
}

// UpdateAction is an instruction for the platform to mutate the order.
type UpdateAction map[string]any

// Result is returned to the platform when an extension call succeeds.
type Result struct {
	StatusCode int            `json:"statusCode"`
	Actions    []UpdateAction `json:"actions"`
}
