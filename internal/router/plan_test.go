package router

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loyalty-relay/internal/models"
)

func order(status models.OrderStatus, typ models.OrderType, ready bool, total int64) *models.Order {
	return &models.Order{
		ID:            "7",
		Status:        status,
		Type:          typ,
		Ready:         ready,
		TotalPrice:    decimal.NewFromInt(total),
		CustomerEmail: "ana@example.com",
	}
}

func kinds(plan ActionPlan) []string {
	out := make([]string, 0, len(plan.Steps))
	for _, s := range plan.Steps {
		switch s.Action.Kind {
		case models.ActionSendMessage:
			out = append(out, "message")
		case models.ActionAdjustPoints:
			if s.Action.Points > 0 {
				out = append(out, "points+")
			} else {
				out = append(out, "points-")
			}
		}
	}
	return out
}

func TestPlan_DecisionTable(t *testing.T) {
	tests := []struct {
		name        string
		order       *models.Order
		wantKinds   []string
		wantMessage string
	}{
		{"pending", order(models.StatusPending, models.TypeDelivery, false, 10), []string{"message"}, "is being prepared"},
		{"pending ignores price", order(models.StatusPending, models.TypePickup, true, 500), []string{"message"}, "is being prepared"},
		{"accepted dine in not ready cheap", order(models.StatusAccepted, models.TypeDineIn, false, 50), []string{"message"}, "we are preparing it"},
		{"accepted dine in not ready expensive", order(models.StatusAccepted, models.TypeDineIn, false, 100), []string{"message", "points+"}, "we are preparing it"},
		{"accepted dine in ready", order(models.StatusAccepted, models.TypeDineIn, true, 150), []string{"message"}, "brought to your table"},
		{"accepted pickup not ready", order(models.StatusAccepted, models.TypePickup, false, 150), []string{"message", "points+"}, "is in preparation"},
		{"accepted delivery not ready", order(models.StatusAccepted, models.TypeDelivery, false, 99), []string{"message"}, "is in preparation"},
		{"accepted other type not ready", order(models.StatusAccepted, "table_reservation", false, 120), []string{"message", "points+"}, "is in preparation"},
		{"accepted pickup ready", order(models.StatusAccepted, models.TypePickup, true, 150), []string{"message"}, "ready for pickup"},
		{"accepted delivery ready", order(models.StatusAccepted, models.TypeDelivery, true, 150), []string{"message"}, "courier is on the way"},
		{"accepted other type ready", order(models.StatusAccepted, "table_reservation", true, 150), []string{"message"}, "is ready."},
		{"accepted empty type ready", order(models.StatusAccepted, "", true, 150), []string{"message"}, "is ready."},
		{"canceled", order(models.StatusCanceled, models.TypeDelivery, false, 10), []string{"points-", "message"}, "has been canceled"},
		{"ready", order(models.StatusReady, models.TypeDelivery, false, 150), []string{"message"}, "ready for pickup"},
		{"delivered", order(models.StatusDelivered, models.TypeDelivery, true, 150), []string{"message"}, "has been delivered"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Plan(tt.order)
			require.False(t, plan.Unhandled)
			assert.Equal(t, tt.wantKinds, kinds(plan))

			var text string
			for _, s := range plan.Steps {
				if s.Action.Kind == models.ActionSendMessage {
					text = s.Action.Message
				}
			}
			assert.Contains(t, text, tt.wantMessage)
			assert.Contains(t, text, "7")
		})
	}
}

func TestPlan_PointsGating(t *testing.T) {
	accepted := Plan(order(models.StatusAccepted, models.TypePickup, false, 150))
	require.Len(t, accepted.Steps, 2)
	assert.False(t, accepted.Steps[0].Gated)
	assert.True(t, accepted.Steps[1].Gated)
	assert.Equal(t, 1, accepted.Steps[1].Action.Points)

	canceled := Plan(order(models.StatusCanceled, models.TypePickup, false, 150))
	require.Len(t, canceled.Steps, 2)
	assert.Equal(t, -1, canceled.Steps[0].Action.Points)
	assert.False(t, canceled.Steps[1].Gated)
}

func TestPlan_ThresholdUsesDecimal(t *testing.T) {
	o := order(models.StatusAccepted, models.TypePickup, false, 0)

	o.TotalPrice = decimal.RequireFromString("99.99")
	assert.Len(t, Plan(o).Steps, 1)

	o.TotalPrice = decimal.RequireFromString("100.00")
	assert.Len(t, Plan(o).Steps, 2)
}

func TestPlan_UnrecognizedStatus(t *testing.T) {
	for _, status := range []models.OrderStatus{"missed", "ACCEPTED", "cancelled", ""} {
		t.Run(string(status), func(t *testing.T) {
			plan := Plan(order(status, models.TypePickup, false, 500))
			assert.True(t, plan.Unhandled)
			assert.Empty(t, plan.Steps)
		})
	}
}
