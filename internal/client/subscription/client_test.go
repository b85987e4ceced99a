package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/subext/internal/entity"
)

func TestAddPostsJSON(t *testing.T) {
	var (
		gotMethod      string
		gotContentType string
		gotBody        map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ignored":true}`))
	}))
	defer srv.Close()

	client := New(srv.URL+"/subscriptions/add", srv.Client())
	err := client.Add(context.Background(), entity.SubscriptionRequest{
		CustomerID: "customer-1",
		ProductID:  "li-1",
		Status:     true,
		Frequency:  "monthly",
		StartDate:  "15-01-2024",
		EndDate:    "",
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, map[string]any{
		"customerId": "customer-1",
		"productId":  "li-1",
		"status":     true,
		"frequency":  "monthly",
		"startDate":  "15-01-2024",
		"endDate":    "",
	}, gotBody)
}

func TestAddReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := New(srv.URL, srv.Client()).Add(context.Background(), entity.SubscriptionRequest{})
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.Code)
	assert.Equal(t, "subscription service responded 502 Bad Gateway", err.Error())
	assert.False(t, IsTimeout(err))
}

func TestAddHonoursClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	httpClient := srv.Client()
	httpClient.Timeout = 50 * time.Millisecond

	err := New(srv.URL, httpClient).Add(context.Background(), entity.SubscriptionRequest{})
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}

func TestIsTimeout(t *testing.T) {
	assert.False(t, IsTimeout(nil))
	assert.False(t, IsTimeout(errors.New("connection refused")))
	assert.True(t, IsTimeout(context.DeadlineExceeded))
}
