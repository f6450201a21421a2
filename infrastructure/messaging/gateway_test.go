package messaging_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"order-service/infrastructure/messaging"
	"order-service/infrastructure/messaging/memory"
	"order-service/pkg/contracts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingObserver struct {
	mu       sync.Mutex
	publish  []string
	requests []string
}

func (o *recordingObserver) ObservePublish(topic string, _ error) {
	o.mu.Lock()
	o.publish = append(o.publish, topic)
	o.mu.Unlock()
}

func (o *recordingObserver) ObserveRequest(topic string, _ time.Duration, _ error) {
	o.mu.Lock()
	o.requests = append(o.requests, topic)
	o.mu.Unlock()
}

func verifyResponder(exists bool) memory.Responder {
	return func(_ context.Context, payload []byte) ([]byte, error) {
		var req contracts.UserVerifyRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		return json.Marshal(contracts.UserVerifyResponse{Exists: exists && req.UserID != ""})
	}
}

func TestGateway_PublishEncodesValue(t *testing.T) {
	broker := memory.New()
	obs := &recordingObserver{}
	g := messaging.NewGateway(broker, zap.NewNop(), messaging.WithObserver(obs))
	require.NoError(t, g.Connect(context.Background()))

	err := g.Publish(context.Background(), "order.created", messaging.Envelope{
		Key:   "o-1",
		Value: map[string]any{"orderId": "o-1"},
	})
	require.NoError(t, err)

	emitted := broker.EmittedTo("order.created")
	require.Len(t, emitted, 1)
	assert.Equal(t, "o-1", emitted[0].Message.Key)
	assert.JSONEq(t, `{"orderId":"o-1"}`, string(emitted[0].Message.Value))
	assert.Equal(t, []string{"order.created"}, obs.publish)
}

func TestGateway_PublishBeforeConnectFails(t *testing.T) {
	g := messaging.NewGateway(memory.New(), nil)
	err := g.Publish(context.Background(), "order.created", messaging.Envelope{Key: "k", Value: 1})
	assert.ErrorIs(t, err, messaging.ErrNotConnected)
}

func TestGateway_SendAndReceive(t *testing.T) {
	broker := memory.New()
	broker.Handle(contracts.TopicUserVerify, verifyResponder(true))
	g := messaging.NewGateway(broker, zap.NewNop())
	g.SubscribeToResponseOf(contracts.TopicUserVerify)
	require.NoError(t, g.Connect(context.Background()))

	resp, err := messaging.Request[contracts.UserVerifyResponse](context.Background(), g, contracts.TopicUserVerify,
		contracts.UserVerifyRequest{UserID: "u-1"})
	require.NoError(t, err)
	assert.True(t, resp.Exists)
	assert.Equal(t, 1, broker.Connects())
}

func TestGateway_ConnectIsIdempotent(t *testing.T) {
	broker := memory.New()
	g := messaging.NewGateway(broker, nil)

	require.NoError(t, g.Connect(context.Background()))
	require.NoError(t, g.Connect(context.Background()))
	assert.Equal(t, 1, broker.Connects())
	assert.True(t, g.Connected())

	require.NoError(t, g.Close())
	require.NoError(t, g.Close())
	assert.False(t, g.Connected())
	assert.ErrorIs(t, g.Connect(context.Background()), messaging.ErrClosed)
}

func TestGateway_LazySubscriptionReconnectsOnce(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	broker := memory.New()
	broker.Handle(contracts.TopicUserVerify, verifyResponder(true))
	g := messaging.NewGateway(broker, zap.New(core))
	require.NoError(t, g.Connect(context.Background()))

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := messaging.Request[contracts.UserVerifyResponse](context.Background(), g, contracts.TopicUserVerify,
				contracts.UserVerifyRequest{UserID: "u-1"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, broker.SubscriptionCount(contracts.TopicUserVerify))
	assert.Equal(t, 2, broker.Connects(), "initial connect plus one reconnect")
	assert.Equal(t, 1, logs.FilterMessage("subscribing to response topic lazily").Len())
	assert.Equal(t, []string{contracts.TopicUserVerify}, g.SubscribedTopics())
}

func TestGateway_EagerSubscriptionIsNotRepeated(t *testing.T) {
	broker := memory.New()
	g := messaging.NewGateway(broker, nil)
	g.SubscribeToResponseOf(contracts.TopicUserVerify, contracts.TopicUserVerify)
	assert.Equal(t, 1, broker.SubscriptionCount(contracts.TopicUserVerify))
}

func TestGateway_NoResponse(t *testing.T) {
	broker := memory.New()
	g := messaging.NewGateway(broker, nil)
	g.SubscribeToResponseOf("inventory.check")
	require.NoError(t, g.Connect(context.Background()))

	err := g.SendAndReceive(context.Background(), "inventory.check", struct{}{}, &struct{}{})
	assert.ErrorIs(t, err, messaging.ErrNoResponse)

	broker.Handle("inventory.check", func(context.Context, []byte) ([]byte, error) { return nil, nil })
	err = g.SendAndReceive(context.Background(), "inventory.check", struct{}{}, &struct{}{})
	assert.ErrorIs(t, err, messaging.ErrNoResponse)
}

func TestGateway_ResponderError(t *testing.T) {
	broker := memory.New()
	remote := &messaging.RemoteError{Topic: contracts.TopicUserVerify, Message: "db down"}
	broker.Handle(contracts.TopicUserVerify, func(context.Context, []byte) ([]byte, error) { return nil, remote })
	g := messaging.NewGateway(broker, nil)
	g.SubscribeToResponseOf(contracts.TopicUserVerify)
	require.NoError(t, g.Connect(context.Background()))

	err := g.SendAndReceive(context.Background(), contracts.TopicUserVerify, contracts.UserVerifyRequest{UserID: "u"}, &contracts.UserVerifyResponse{})
	var re *messaging.RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "db down", re.Message)
}

func TestGateway_ConnectFailure(t *testing.T) {
	broker := memory.New()
	broker.FailConnects(errors.New("refused"))
	g := messaging.NewGateway(broker, nil)
	err := g.Connect(context.Background())
	require.Error(t, err)
	assert.False(t, g.Connected())
}
