package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/subext/pkg/errorbank"
)

func TestDecodeExtensionRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{name: "not json", body: `{"action":`, message: "invalid payload"},
		{name: "missing resource", body: `{"action":"Create"}`, message: "resource is required"},
		{name: "missing order", body: `{"action":"Create","resource":{"typeId":"order","id":"o-1"}}`, message: "resource.obj is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeExtensionRequest([]byte(tt.body))
			require.Error(t, err)

			appErr := errorbank.From(err)
			assert.Equal(t, errorbank.KindInvalidInput, appErr.Kind())
			assert.Equal(t, tt.message, appErr.Message())
		})
	}
}

func TestDecodeExtensionRequestAcceptsAnyAction(t *testing.T) {
	req, err := DecodeExtensionRequest([]byte(`{"action":"Delete","resource":{"typeId":"order","id":"o-1","obj":{"id":"o-1","customerId":"c-1","lineItems":[]}}}`))
	require.NoError(t, err)
	assert.Equal(t, "Delete", req.Action)
	assert.Equal(t, "c-1", req.Resource.Obj.CustomerID)
}
