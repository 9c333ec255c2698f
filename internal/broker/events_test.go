package broker

import (
	"testing"

	"order-core/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderEvent(t *testing.T) {
	order := &models.Order{
		ID:          42,
		OrderNo:     "17000000000001234",
		UserID:      7,
		TotalAmount: 2500,
		Status:      models.OrderStatusPending,
	}
	items := []models.OrderItem{
		{ProductID: 1, Quantity: 2, Price: 1000},
		{ProductID: 2, Quantity: 1, Price: 500},
	}

	event := NewOrderEvent(models.EventTypeOrderCreated, order, items)

	assert.NotEmpty(t, event.EventID)
	assert.False(t, event.Timestamp.IsZero())
	assert.Equal(t, models.EventTypeOrderCreated, event.EventType)
	assert.Equal(t, int64(42), event.OrderID)
	assert.Equal(t, "17000000000001234", event.OrderNo)
	assert.Equal(t, int64(7), event.UserID)
	assert.Equal(t, int64(2500), event.TotalAmount)

	require.Len(t, event.Items, 2)
	assert.Equal(t, int64(1), event.Items[0].ProductID)
	assert.Equal(t, 2, event.Items[0].Quantity)
	assert.Equal(t, int64(1000), event.Items[0].UnitPrice)
}

func TestNewOrderEventIDsAreUnique(t *testing.T) {
	order := &models.Order{ID: 1}

	a := NewOrderEvent(models.EventTypeOrderPaid, order, nil)
	b := NewOrderEvent(models.EventTypeOrderPaid, order, nil)

	assert.NotEqual(t, a.EventID, b.EventID)
}

func TestFanOutEventIDsAreDeterministic(t *testing.T) {
	// a re-fanned-out deduction for the same order line reuses the same
	// id, so the consumer ledger drops the duplicate
	a := fanOutBaseEvent(models.EventTypeStockDeduction, "42-1")
	b := fanOutBaseEvent(models.EventTypeStockDeduction, "42-1")
	assert.Equal(t, a.EventID, b.EventID)

	c := fanOutBaseEvent(models.EventTypeStockDeduction, "42-2")
	assert.NotEqual(t, a.EventID, c.EventID)

	d := fanOutBaseEvent(models.EventTypeStockRecovery, "42-1")
	assert.NotEqual(t, a.EventID, d.EventID)

	e := fanOutBaseEvent(models.EventTypeEmailNotification, "42-order_created")
	assert.NotEqual(t, a.EventID, e.EventID)
}

func TestOrderKey(t *testing.T) {
	assert.Equal(t, "order-42", orderKey(42))
}
