package order

import (
	"errors"
	"testing"
	"time"

	"order-service/domain/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestItem(t *testing.T, id string, product ProductID, quantity int, price float64) OrderItem {
	t.Helper()
	item, err := NewOrderItem(id, product, quantity, shared.MustMoney(price))
	require.NoError(t, err)
	return item
}

func newTestOrder(t *testing.T) *Order {
	t.Helper()
	o, err := NewOrder("order-1", "user-1", []OrderItem{
		newTestItem(t, "item-1", "p1", 2, 10.99),
	})
	require.NoError(t, err)
	return o
}

func TestNewOrder(t *testing.T) {
	o, err := NewOrder("order-1", "user-1", []OrderItem{
		newTestItem(t, "item-1", "p1", 2, 10.99),
		newTestItem(t, "item-2", "p2", 1, 5),
	})
	require.NoError(t, err)

	assert.Equal(t, "order-1", o.ID())
	assert.Equal(t, UserID("user-1"), o.UserID())
	assert.Equal(t, StatusPending, o.Status())
	assert.Equal(t, "26.98", o.TotalAmount().String())
	assert.Equal(t, o.CreatedAt(), o.UpdatedAt())
	assert.Len(t, o.Items(), 2)

	events := o.PullEvents()
	require.Len(t, events, 1)
	created, ok := events[0].(*OrderCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, EventNameOrderCreated, created.EventName())
	assert.Equal(t, OrderID("order-1"), created.OrderID())
	assert.Equal(t, UserID("user-1"), created.UserID())
	assert.True(t, created.TotalAmount().Equals(o.TotalAmount()))
	require.Len(t, created.Items(), 2)
	assert.Equal(t, CreatedItem{ProductID: "p1", Quantity: 2, Price: shared.MustMoney(10.99)}, created.Items()[0])
}

func TestNewOrder_TotalForRepeatedItem(t *testing.T) {
	o := newTestOrder(t)
	assert.Equal(t, "21.98", o.TotalAmount().String())
}

func TestNewOrder_RejectsEmptyItems(t *testing.T) {
	_, err := NewOrder("order-1", "user-1", nil)
	assert.ErrorIs(t, err, ErrEmptyOrderItems)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	assert.EqualError(t, err, "order must have at least one item")
}

func TestNewOrder_RejectsBlankIdentifiers(t *testing.T) {
	items := []OrderItem{newTestItem(t, "item-1", "p1", 1, 1)}

	_, err := NewOrder(" ", "user-1", items)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = NewOrder("order-1", "", items)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestNewOrderItem_Validation(t *testing.T) {
	_, err := NewOrderItem("item-1", "p1", 0, shared.MustMoney(1))
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = NewOrderItem("item-1", "p1", -3, shared.MustMoney(1))
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = NewOrderItem("item-1", "", 1, shared.MustMoney(1))
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	item := newTestItem(t, "item-1", "p1", 3, 20.5)
	assert.Equal(t, "61.50", item.Subtotal().String())
}

func TestOrder_UpdateStatus(t *testing.T) {
	o := newTestOrder(t)
	o.PullEvents()

	require.NoError(t, o.UpdateStatus(StatusProcessing))
	assert.Equal(t, StatusProcessing, o.Status())
	assert.False(t, o.UpdatedAt().Before(o.CreatedAt()))

	events := o.PullEvents()
	require.Len(t, events, 1)
	changed := events[0].(*OrderStatusChangedEvent)
	assert.Equal(t, EventNameOrderStatusChanged, changed.EventName())
	assert.Equal(t, StatusPending, changed.OldStatus())
	assert.Equal(t, StatusProcessing, changed.NewStatus())
	assert.Equal(t, UserID("user-1"), changed.UserID())
	assert.Equal(t, o.UpdatedAt(), changed.UpdatedAt())
}

func TestOrder_UpdateStatus_SameStatusIsNoop(t *testing.T) {
	o := newTestOrder(t)
	o.PullEvents()
	before := o.UpdatedAt()

	require.NoError(t, o.UpdateStatus(StatusPending))
	assert.Empty(t, o.PullEvents())
	assert.Equal(t, before, o.UpdatedAt())
}

func TestOrder_UpdateStatus_IllegalTransition(t *testing.T) {
	o := newTestOrder(t)
	o.PullEvents()
	before := o.UpdatedAt()

	err := o.UpdateStatus(StatusDelivered)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidStatusTransition))
	assert.True(t, errors.Is(err, shared.ErrConflict))
	assert.Contains(t, err.Error(), "PENDING")
	assert.Contains(t, err.Error(), "DELIVERED")

	assert.Equal(t, StatusPending, o.Status())
	assert.Equal(t, before, o.UpdatedAt())
	assert.Empty(t, o.PullEvents())
}

func TestOrder_UpdateStatus_EveryPair(t *testing.T) {
	legal := map[Status]map[Status]bool{
		StatusPending:    {StatusProcessing: true, StatusCancelled: true},
		StatusProcessing: {StatusShipped: true, StatusCancelled: true},
		StatusShipped:    {StatusDelivered: true, StatusReturned: true},
		StatusDelivered:  {StatusReturned: true},
	}
	stamp := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for _, from := range AllStatuses() {
		for _, to := range AllStatuses() {
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				o := RebuildFromDTO(ReconstructionDTO{
					ID:          "order-1",
					UserID:      "user-1",
					Items:       []OrderItem{newTestItem(t, "item-1", "p1", 1, 5)},
					TotalAmount: shared.MustMoney(5),
					Status:      from,
					CreatedAt:   stamp,
					UpdatedAt:   stamp,
				})

				err := o.UpdateStatus(to)

				switch {
				case from == to:
					require.NoError(t, err)
					assert.Equal(t, from, o.Status())
					assert.Equal(t, stamp, o.UpdatedAt())
					assert.Empty(t, o.PullEvents())
				case legal[from][to]:
					require.NoError(t, err)
					assert.Equal(t, to, o.Status())
					assert.True(t, o.UpdatedAt().After(stamp))
					assert.Len(t, o.PullEvents(), 1)
				default:
					require.ErrorIs(t, err, ErrInvalidStatusTransition)
					assert.EqualError(t, err, "invalid status transition from "+string(from)+" to "+string(to))
					assert.Equal(t, from, o.Status())
					assert.Equal(t, stamp, o.UpdatedAt())
					assert.Empty(t, o.PullEvents())
				}
			})
		}
	}
}

func TestOrder_UpdateStatus_UnknownStatus(t *testing.T) {
	o := newTestOrder(t)
	err := o.UpdateStatus(Status("LOST"))
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestOrder_FullLifecycle(t *testing.T) {
	o := newTestOrder(t)
	for _, next := range []Status{StatusProcessing, StatusShipped, StatusDelivered, StatusReturned} {
		require.NoError(t, o.UpdateStatus(next))
	}
	assert.Len(t, o.PullEvents(), 5)
	assert.True(t, o.Status().IsTerminal())
}

func TestOrder_Cancel(t *testing.T) {
	o := newTestOrder(t)
	o.PullEvents()

	require.NoError(t, o.Cancel())
	assert.Equal(t, StatusCancelled, o.Status())
	require.Len(t, o.PullEvents(), 1)

	err := o.Cancel()
	assert.NoError(t, err, "cancelling a cancelled order is a no-op")
	assert.Empty(t, o.PullEvents())
}

func TestOrder_CancelDelivered(t *testing.T) {
	o := RebuildFromDTO(ReconstructionDTO{
		ID:          "order-1",
		UserID:      "user-1",
		Items:       []OrderItem{newTestItem(t, "item-1", "p1", 1, 1)},
		TotalAmount: shared.MustMoney(1),
		Status:      StatusDelivered,
	})

	err := o.Cancel()
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	assert.Equal(t, StatusDelivered, o.Status())
}

func TestOrder_PullEventsClears(t *testing.T) {
	o := newTestOrder(t)
	require.NoError(t, o.UpdateStatus(StatusProcessing))

	first := o.PullEvents()
	require.Len(t, first, 2)
	assert.Equal(t, EventNameOrderCreated, first[0].EventName())
	assert.Equal(t, EventNameOrderStatusChanged, first[1].EventName())

	second := o.PullEvents()
	assert.NotNil(t, second)
	assert.Empty(t, second)
}

func TestRebuildFromDTO_RecordsNoEvents(t *testing.T) {
	o := RebuildFromDTO(ReconstructionDTO{ID: "order-1", UserID: "user-1", Status: StatusShipped})
	assert.Empty(t, o.PullEvents())
	assert.Equal(t, StatusShipped, o.Status())
}

func TestOrder_ItemsIsACopy(t *testing.T) {
	o := newTestOrder(t)
	items := o.Items()
	items[0] = OrderItem{}
	assert.Equal(t, "item-1", o.Items()[0].ID())
}

func TestErrors_CarryStack(t *testing.T) {
	err := NewOrderNotFoundError("missing")
	var stacker shared.Stacker
	require.True(t, errors.As(err, &stacker))
	assert.NotEmpty(t, stacker.Stack())
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.EqualError(t, err, "order not found: missing")
}
