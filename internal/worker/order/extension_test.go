package order

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/subext/internal/cache"
	"github.com/Additional-Code/subext/internal/client/subscription"
	"github.com/Additional-Code/subext/internal/config"
	"github.com/Additional-Code/subext/internal/entity"
	"github.com/Additional-Code/subext/internal/messaging"
	ordersvc "github.com/Additional-Code/subext/internal/service/order"
	"github.com/Additional-Code/subext/pkg/errorbank"
)

type extensionFunc func(ctx context.Context, action string, resource *entity.OrderResource) (entity.Result, error)

func (f extensionFunc) Handle(ctx context.Context, action string, resource *entity.OrderResource) (entity.Result, error) {
	return f(ctx, action, resource)
}

const payload = `{"action":"Create","resource":{"typeId":"order","id":"order-1","obj":{"id":"order-1","customerId":"c-1","lineItems":[]}}}`

func TestExtensionHandler(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		err     error
		wantErr bool
		called  bool
	}{
		{name: "success", body: payload, called: true},
		{name: "malformed payload is acknowledged", body: `{"action":"Create"}`},
		{name: "rejected action is acknowledged", body: payload, err: errorbank.UnsupportedAction("Update action is not supported"), called: true},
		{name: "upstream failure is redelivered", body: payload, err: errorbank.API("Failed to process order: 503"), wantErr: true, called: true},
		{name: "timeout is redelivered", body: payload, err: errorbank.Timeout("Failed to process order: deadline"), wantErr: true, called: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg config.Config
			cfg.Messaging.Kafka.Topic = "orders.extension"

			called := false
			reg := NewExtensionHandler(zap.NewNop(), cfg, extensionFunc(func(_ context.Context, action string, resource *entity.OrderResource) (entity.Result, error) {
				called = true
				assert.Equal(t, "Create", action)
				assert.Equal(t, "c-1", resource.Obj.CustomerID)
				return entity.Result{StatusCode: 200}, tt.err
			}))
			require.Equal(t, "orders.extension", reg.Topic)

			err := reg.Handler(context.Background(), messaging.Message{Topic: "orders.extension", Value: []byte(tt.body)})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.called, called)
		})
	}
}

const subscriptionTypeID = "8f6b8a4e-2c7d-4b8e-9a53-1f0d3c6e2b71"

func subscriptionLineItem(id string) string {
	return fmt.Sprintf(`{"id":%q,"productType":{"typeId":"product-type","id":%q},"variant":{"id":1,"attributes":[`+
		`{"name":"frequency","value":{"key":"monthly","label":"Monthly"}},`+
		`{"name":"startDate","value":"2024-01-15"},{"name":"endDate","value":"2024-06-15"}]}}`, id, subscriptionTypeID)
}

func TestRedeliveryOnlyRetriesFailedLineItems(t *testing.T) {
	var (
		mu    sync.Mutex
		posts = map[string]int{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ProductID string `json:"productId"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		posts[body.ProductID]++
		mu.Unlock()
		if body.ProductID == "li-bad" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var cfg config.Config
	cfg.Extension.SubscriptionTypeID = subscriptionTypeID
	cfg.Extension.Deadline = 2 * time.Second
	cfg.Cache.DefaultTTL = time.Hour
	cfg.Messaging.Kafka.Topic = "orders.extension"

	svc := ordersvc.NewService(ordersvc.Params{
		Config:    cfg,
		Logger:    zap.NewNop(),
		Registrar: subscription.New(srv.URL, srv.Client()),
		Guard:     cache.NewGuard(cache.NewMemoryStore(0), cfg),
	})
	reg := NewExtensionHandler(zap.NewNop(), cfg, svc)

	body := `{"action":"Create","resource":{"typeId":"order","id":"order-1","obj":{"id":"order-1","customerId":"c-1","lineItems":[` +
		subscriptionLineItem("li-good") + `,` + subscriptionLineItem("li-bad") + `]}}}`
	msg := messaging.Message{Topic: "orders.extension", Value: []byte(body)}

	for i := 0; i < 3; i++ {
		require.Error(t, reg.Handler(context.Background(), msg))
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]int{"li-good": 1, "li-bad": 3}, posts)
}
