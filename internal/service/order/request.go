package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/Additional-Code/subext/internal/entity"
)

// Variant attributes read from subscription line items.
const (
	AttributeFrequency = "frequency"
	AttributeStartDate = "startDate"
	AttributeEndDate   = "endDate"
)

// DateLayout is the dd-MM-yyyy format expected by the subscription service.
const DateLayout = "02-01-2006"

var inputDateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

// BuildRequest derives the subscription registration for a line item. Missing
// attributes leave the matching field empty; malformed ones are an error.
func BuildRequest(customerID string, item entity.LineItem) (entity.SubscriptionRequest, error) {
	req := entity.SubscriptionRequest{
		CustomerID: customerID,
		ProductID:  item.ID,
		Status:     true,
	}

	for _, attr := range item.Variant.Attributes {
		var err error
		switch attr.Name {
		case AttributeFrequency:
			var label string
			label, err = attr.Label()
			req.Frequency = strings.ToLower(label)
		case AttributeStartDate:
			req.StartDate, err = formatDate(attr)
		case AttributeEndDate:
			req.EndDate, err = formatDate(attr)
		}
		if err != nil {
			return entity.SubscriptionRequest{}, err
		}
	}

	return req, nil
}

// formatDate keeps the calendar date as written; timestamps are not shifted to UTC.
func formatDate(attr entity.Attribute) (string, error) {
	raw, err := attr.Text()
	if err != nil {
		return "", err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	for _, layout := range inputDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	return "", fmt.Errorf("attribute %s: invalid date %q", attr.Name, raw)
}
