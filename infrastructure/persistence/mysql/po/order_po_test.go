package po

import (
	"testing"

	"order-service/domain/order"
	"order-service/domain/shared"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderPORoundTrip(t *testing.T) {
	first, err := order.NewOrderItem("i-1", "p1", 2, shared.MustMoney(10.99))
	require.NoError(t, err)
	second, err := order.NewOrderItem("i-2", "p2", 1, shared.MustMoney(5))
	require.NoError(t, err)
	o, err := order.NewOrder("o-1", "u-1", []order.OrderItem{first, second})
	require.NoError(t, err)
	require.NoError(t, o.UpdateStatus(order.StatusProcessing))

	orderPO, itemPOs := FromOrderDomain(o)
	assert.Equal(t, "o-1", orderPO.ID)
	assert.Equal(t, "PROCESSING", orderPO.Status)
	assert.True(t, decimal.RequireFromString("26.98").Equal(orderPO.TotalAmount))
	require.Len(t, itemPOs, 2)
	assert.Equal(t, "o-1", itemPOs[1].OrderID)
	assert.Equal(t, 1, itemPOs[1].Position)

	rebuilt, err := orderPO.ToDomain(itemPOs)
	require.NoError(t, err)
	assert.Equal(t, o.OrderID(), rebuilt.OrderID())
	assert.Equal(t, o.Status(), rebuilt.Status())
	assert.True(t, o.TotalAmount().Equals(rebuilt.TotalAmount()))
	require.Len(t, rebuilt.Items(), 2)
	for i, item := range rebuilt.Items() {
		want := o.Items()[i]
		assert.Equal(t, want.ID(), item.ID())
		assert.Equal(t, want.ProductID(), item.ProductID())
		assert.Equal(t, want.Quantity(), item.Quantity())
		assert.True(t, want.UnitPrice().Equals(item.UnitPrice()))
	}
	assert.Empty(t, rebuilt.PullEvents())
}

func TestOrderPO_RejectsNegativeAmounts(t *testing.T) {
	p := &OrderPO{ID: "o-1", TotalAmount: decimal.NewFromInt(-1)}
	_, err := p.ToDomain(nil)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}
