package router

import (
	"fmt"

	"github.com/shopspring/decimal"

	"loyalty-relay/internal/models"
)

// PointsThreshold is the order total at which an accepted order earns a point
var PointsThreshold = decimal.NewFromInt(100)

// Step is one action of a plan. A gated step runs only if the step before it succeeded.
type Step struct {
	Action models.NotificationAction
	Gated  bool
}

// ActionPlan is the ordered list of provider calls decided for an order
type ActionPlan struct {
	Steps     []Step
	Unhandled bool
}

// Plan maps an order to its action plan. It performs no I/O.
func Plan(order *models.Order) ActionPlan {
	if !order.Status.IsKnown() {
		return ActionPlan{Unhandled: true}
	}
	id := order.ID.String()

	switch order.Status {
	case models.StatusPending:
		return messageOnly(fmt.Sprintf("⏳ Your order %s is being prepared.", id))

	case models.StatusAccepted:
		return planAccepted(order, id)

	case models.StatusCanceled:
		// Deduction goes first and the message is sent whatever its result.
		return ActionPlan{Steps: []Step{
			{Action: models.AdjustPoints(-1)},
			{Action: models.SendMessage(fmt.Sprintf("❌ Your order %s has been canceled.", id))},
		}}

	case models.StatusReady:
		return messageOnly(fmt.Sprintf("✅ Your order %s is ready for pickup.", id))

	default:
		return messageOnly(fmt.Sprintf("🎉 Your order %s has been delivered. Enjoy your meal!", id))
	}
}

func planAccepted(order *models.Order, id string) ActionPlan {
	if order.Ready {
		if !order.Type.IsKnown() {
			return messageOnly(fmt.Sprintf("✅ Your order %s is ready.", id))
		}
		switch order.Type {
		case models.TypeDineIn:
			return messageOnly(fmt.Sprintf("🍽️ Your order %s is ready and is being brought to your table.", id))
		case models.TypePickup:
			return messageOnly(fmt.Sprintf("✅ Your order %s is ready for pickup.", id))
		default:
			return messageOnly(fmt.Sprintf("🛵 Your order %s is ready and the courier is on the way.", id))
		}
	}

	var text string
	if order.Type == models.TypeDineIn {
		text = fmt.Sprintf("✅ Great! Your order %s has been confirmed and we are preparing it.", id)
	} else {
		text = fmt.Sprintf("✅ Great! Your order %s has been confirmed and is in preparation.", id)
	}

	plan := messageOnly(text)
	if order.TotalPrice.GreaterThanOrEqual(PointsThreshold) {
		plan.Steps = append(plan.Steps, Step{Action: models.AdjustPoints(1), Gated: true})
	}
	return plan
}

func messageOnly(text string) ActionPlan {
	return ActionPlan{Steps: []Step{{Action: models.SendMessage(text)}}}
}
