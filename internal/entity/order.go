package entity

import (
	"encoding/json"
	"fmt"
	"sort"
)

// OrderResource is the resource envelope the platform sends with an extension call.
type OrderResource struct {
	TypeID string `json:"typeId,omitempty"`
	ID     string `json:"id"`
	Obj    *Order `json:"obj" validate:"required"`
}

// Order is the expanded order carried in OrderResource.Obj.
type Order struct {
	ID         string     `json:"id,omitempty"`
	CustomerID string     `json:"customerId,omitempty"`
	LineItems  []LineItem `json:"lineItems"`
}

// LineItem is one product entry of an order.
type LineItem struct {
	ID          string         `json:"id"`
	ProductID   string         `json:"productId,omitempty"`
	Quantity    int64          `json:"quantity,omitempty"`
	ProductType Reference      `json:"productType"`
	Variant     ProductVariant `json:"variant"`
}

// Reference points at another platform resource; Obj is set when the reference was expanded.
type Reference struct {
	TypeID string            `json:"typeId,omitempty"`
	ID     string            `json:"id"`
	Obj    *ReferencedObject `json:"obj,omitempty"`
}

// ReferencedObject holds the fields of an expanded reference we care about.
type ReferencedObject struct {
	Key string `json:"key,omitempty"`
}

// ProductVariant is the variant selected on a line item.
type ProductVariant struct {
	ID         int64       `json:"id,omitempty"`
	SKU        string      `json:"sku,omitempty"`
	Attributes []Attribute `json:"attributes"`
}

// Attribute is a named variant attribute. Value keeps the raw JSON since its
// shape depends on the attribute type.
type Attribute struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// Clone returns a deep copy of the resource.
func (r *OrderResource) Clone() *OrderResource {
	if r == nil {
		return nil
	}
	out := *r
	if r.Obj != nil {
		order := *r.Obj
		if r.Obj.LineItems != nil {
			order.LineItems = make([]LineItem, len(r.Obj.LineItems))
			for i, item := range r.Obj.LineItems {
				order.LineItems[i] = item.clone()
			}
		}
		out.Obj = &order
	}
	return &out
}

func (li LineItem) clone() LineItem {
	out := li
	if li.ProductType.Obj != nil {
		obj := *li.ProductType.Obj
		out.ProductType.Obj = &obj
	}
	if li.Variant.Attributes != nil {
		out.Variant.Attributes = make([]Attribute, len(li.Variant.Attributes))
		for i, attr := range li.Variant.Attributes {
			out.Variant.Attributes[i] = Attribute{
				Name:  attr.Name,
				Value: append(json.RawMessage(nil), attr.Value...),
			}
		}
	}
	return out
}

// Text decodes a plain string value, such as a date. A missing value reads
// as empty, the same as null.
func (a Attribute) Text() (string, error) {
	if len(a.Value) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(a.Value, &s); err != nil {
		return "", fmt.Errorf("attribute %s: expected string value: %w", a.Name, err)
	}
	return s, nil
}

// Label decodes an enum style value. It accepts {"label": "x"}, localized
// labels {"label": {"en": "x"}} and bare strings.
func (a Attribute) Label() (string, error) {
	var enum struct {
		Label json.RawMessage `json:"label"`
	}
	if err := json.Unmarshal(a.Value, &enum); err != nil || len(enum.Label) == 0 {
		return a.Text()
	}

	var label string
	if err := json.Unmarshal(enum.Label, &label); err == nil {
		return label, nil
	}

	var localized map[string]string
	if err := json.Unmarshal(enum.Label, &localized); err != nil {
		return "", fmt.Errorf("attribute %s: unsupported label: %w", a.Name, err)
	}
	if label, ok := localized["en"]; ok {
		return label, nil
	}
	locales := make([]string, 0, len(localized))
	for locale := range localized {
		locales = append(locales, locale)
	}
	sort.Strings(locales)
	if len(locales) == 0 {
		return "", nil
	}
	return localized[locales[0]], nil
}
