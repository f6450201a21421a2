package order

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"order-service/api/middleware"
	"order-service/api/response"
	orderapp "order-service/application/order"
	"order-service/infrastructure/messaging"
	"order-service/infrastructure/messaging/memory"
	memrepo "order-service/infrastructure/persistence/memory"
	"order-service/infrastructure/resilience/circuitbreaker"
	"order-service/pkg/contracts"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	engine *gin.Engine
	broker *memory.Broker
	repo   *memrepo.OrderRepository
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	broker := memory.New()
	memory.NewUserDirectory(false, "user-1").Install(broker)

	gateway := messaging.NewGateway(broker, zap.NewNop())
	gateway.SubscribeToResponseOf(contracts.TopicUserVerify)
	require.NoError(t, gateway.Connect(context.Background()))

	repo := memrepo.NewOrderRepository()
	svc := orderapp.NewApplicationService(
		repo,
		orderapp.NewUserVerifier(gateway, circuitbreaker.NewRegistry(circuitbreaker.DefaultSettings()), zap.NewNop()),
		messaging.NewOrderEventPublisher(gateway),
		orderapp.WithLogger(zap.NewNop()),
	)

	engine := gin.New()
	engine.Use(middleware.RequestIDMiddleware())
	NewController(svc).RegisterRoutes(engine.Group("/api/v1"))
	return &testEnv{engine: engine, broker: broker, repo: repo}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w, resp
}

func createBody(userID string) map[string]any {
	return map[string]any{
		"userId": userID,
		"items":  []map[string]any{{"productId": "p1", "quantity": 2, "price": 10.99}},
	}
}

func (e *testEnv) create(t *testing.T) string {
	t.Helper()
	w, resp := e.do(t, http.MethodPost, "/api/v1/orders", createBody("user-1"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	id, _ := data["orderId"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestCreateOrder(t *testing.T) {
	env := setup(t)

	w, resp := env.do(t, http.MethodPost, "/api/v1/orders", createBody("user-1"))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, resp.RequestID, w.Header().Get(middleware.RequestIDHeader))
	assert.Len(t, env.broker.EmittedTo(contracts.TopicOrderCreated), 1)
}

func TestCreateOrder_UnknownUserIs404(t *testing.T) {
	env := setup(t)

	w, resp := env.do(t, http.MethodPost, "/api/v1/orders", createBody("ghost"))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "USER_NOT_FOUND", resp.Error)
	assert.Zero(t, env.repo.Len())
}

func TestCreateOrder_BadBody(t *testing.T) {
	env := setup(t)

	w, resp := env.do(t, http.MethodPost, "/api/v1/orders", map[string]any{"items": []any{}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_REQUEST", resp.Error)
	assert.Equal(t, "invalid request parameters", resp.Message)
}

func TestCreateOrder_InvalidQuantity(t *testing.T) {
	env := setup(t)
	body := map[string]any{
		"userId": "user-1",
		"items":  []map[string]any{{"productId": "p1", "quantity": 0, "price": 1}},
	}

	w, _ := env.do(t, http.MethodPost, "/api/v1/orders", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetOrder(t *testing.T) {
	env := setup(t)
	id := env.create(t)

	w, resp := env.do(t, http.MethodGet, "/api/v1/orders/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]any)
	assert.Equal(t, id, data["id"])
	assert.Equal(t, 21.98, data["totalAmount"])
	assert.Equal(t, "PENDING", data["status"])

	w, resp = env.do(t, http.MethodGet, "/api/v1/orders/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "ORDER_NOT_FOUND", resp.Error)
}

func TestGetUserOrders(t *testing.T) {
	env := setup(t)
	first := env.create(t)
	env.create(t)
	w, _ := env.do(t, http.MethodPut, "/api/v1/orders/"+first+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := env.do(t, http.MethodGet, "/api/v1/orders/user/user-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 2)

	w, resp = env.do(t, http.MethodGet, "/api/v1/orders/user/user-1?active=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 1)

	w, _ = env.do(t, http.MethodGet, "/api/v1/orders/user/user-1?active=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateOrderStatus(t *testing.T) {
	env := setup(t)
	id := env.create(t)

	w, resp := env.do(t, http.MethodPut, "/api/v1/orders/"+id+"/status", map[string]string{"status": "PROCESSING"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PROCESSING", resp.Data.(map[string]any)["status"])
	assert.Len(t, env.broker.EmittedTo(contracts.TopicOrderStatusChanged), 1)

	w, resp = env.do(t, http.MethodPut, "/api/v1/orders/"+id+"/status", map[string]string{"status": "PENDING"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_ORDER_STATE", resp.Error)

	w, _ = env.do(t, http.MethodPut, "/api/v1/orders/"+id+"/status", map[string]string{"status": "LOST"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = env.do(t, http.MethodPut, "/api/v1/orders/"+id+"/status", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelOrder_DeliveredIsConflict(t *testing.T) {
	env := setup(t)
	id := env.create(t)
	for _, s := range []string{"PROCESSING", "SHIPPED", "DELIVERED"} {
		w, _ := env.do(t, http.MethodPut, "/api/v1/orders/"+id+"/status", map[string]string{"status": s})
		require.Equal(t, http.StatusOK, w.Code)
	}
	saves := env.repo.Saves()

	w, resp := env.do(t, http.MethodPut, "/api/v1/orders/"+id+"/cancel", nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid status transition from DELIVERED to CANCELLED", resp.Message)
	assert.Equal(t, saves, env.repo.Saves())
}
