package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneIsDeep(t *testing.T) {
	original := &OrderResource{
		TypeID: "order",
		ID:     "order-1",
		Obj: &Order{
			CustomerID: "customer-1",
			LineItems: []LineItem{{
				ID:          "li-1",
				ProductType: Reference{ID: "type-1", Obj: &ReferencedObject{Key: "subscription"}},
				Variant: ProductVariant{Attributes: []Attribute{
					{Name: "startDate", Value: json.RawMessage(`"2024-01-15"`)},
				}},
			}},
		},
	}

	clone := original.Clone()
	require.Equal(t, original, clone)

	clone.Obj.CustomerID = "changed"
	clone.Obj.LineItems[0].ID = "changed"
	clone.Obj.LineItems[0].ProductType.Obj.Key = "changed"
	clone.Obj.LineItems[0].Variant.Attributes[0].Value[1] = 'X'

	assert.Equal(t, "customer-1", original.Obj.CustomerID)
	assert.Equal(t, "li-1", original.Obj.LineItems[0].ID)
	assert.Equal(t, "subscription", original.Obj.LineItems[0].ProductType.Obj.Key)
	assert.Equal(t, `"2024-01-15"`, string(original.Obj.LineItems[0].Variant.Attributes[0].Value))
}

func TestCloneNil(t *testing.T) {
	var r *OrderResource
	assert.Nil(t, r.Clone())

	withoutObj := (&OrderResource{ID: "x"}).Clone()
	assert.Nil(t, withoutObj.Obj)
}

func TestAttributeLabel(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    string
		wantErr bool
	}{
		{name: "enum", value: `{"key":"monthly","label":"Monthly"}`, want: "Monthly"},
		{name: "localized english", value: `{"key":"m","label":{"de":"Monatlich","en":"Monthly"}}`, want: "Monthly"},
		{name: "localized fallback", value: `{"key":"m","label":{"fr":"Mensuel","de":"Monatlich"}}`, want: "Monatlich"},
		{name: "plain string", value: `"Weekly"`, want: "Weekly"},
		{name: "number", value: `42`, wantErr: true},
		{name: "label number", value: `{"label":7}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Attribute{Name: "frequency", Value: json.RawMessage(tt.value)}.Label()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAttributeText(t *testing.T) {
	got, err := Attribute{Name: "startDate", Value: json.RawMessage(`"2024-01-15"`)}.Text()
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", got)

	_, err = Attribute{Name: "startDate", Value: json.RawMessage(`{"label":"x"}`)}.Text()
	assert.Error(t, err)

	for _, value := range []json.RawMessage{nil, json.RawMessage(`null`)} {
		got, err = Attribute{Name: "startDate", Value: value}.Text()
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = Attribute{Name: "frequency", Value: value}.Label()
		require.NoError(t, err)
		assert.Empty(t, got)
	}
}
