package models

import (
	"fmt"
	"time"
)

// LoyaltyAccount is a customer's digital card on the loyalty provider
type LoyaltyAccount struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// ActionKind distinguishes the two provider mutations
type ActionKind string

const (
	ActionSendMessage  ActionKind = "message"
	ActionAdjustPoints ActionKind = "points"
)

// NotificationAction is one call the router issues against a loyalty account.
// Message is set for ActionSendMessage, Points for ActionAdjustPoints.
type NotificationAction struct {
	Kind    ActionKind `json:"kind"`
	Message string     `json:"message,omitempty"`
	Points  int        `json:"points,omitempty"`
}

func SendMessage(text string) NotificationAction {
	return NotificationAction{Kind: ActionSendMessage, Message: text}
}

func AdjustPoints(delta int) NotificationAction {
	return NotificationAction{Kind: ActionAdjustPoints, Points: delta}
}

func (a NotificationAction) String() string {
	switch a.Kind {
	case ActionSendMessage:
		return fmt.Sprintf("message(%q)", a.Message)
	case ActionAdjustPoints:
		return fmt.Sprintf("points(%+d)", a.Points)
	default:
		return string(a.Kind)
	}
}

// ActionResult records what happened to one planned action
type ActionResult struct {
	Action    NotificationAction `json:"action"`
	Succeeded bool               `json:"succeeded"`
	Skipped   bool               `json:"skipped,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// OutcomeStatus is the overall result of routing one order
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeIgnored OutcomeStatus = "ignored"
	OutcomeError   OutcomeStatus = "error"
)

// ProcessedOrder summarises a routed order in the outcome
type ProcessedOrder struct {
	OrderID    string      `json:"order_id"`
	CustomerID string      `json:"customer_id"`
	Status     OrderStatus `json:"status"`
}

// RoutingOutcome is returned once per routed order
type RoutingOutcome struct {
	Status    OutcomeStatus   `json:"status"`
	Reason    string          `json:"reason,omitempty"`
	Processed *ProcessedOrder `json:"processed,omitempty"`
	Actions   []ActionResult  `json:"actions_taken,omitempty"`
}

// Ignored builds an outcome for an order that was not acted on
func Ignored(reason string) *RoutingOutcome {
	return &RoutingOutcome{Status: OutcomeIgnored, Reason: reason}
}

// OutcomeMessage is published to the outcomes fanout exchange
type OutcomeMessage struct {
	RequestID string          `json:"request_id"`
	OrderID   string          `json:"order_id"`
	Outcome   *RoutingOutcome `json:"outcome"`
	Timestamp time.Time       `json:"timestamp"`
}

// CreateOutcomeMessage creates an OutcomeMessage stamped with the current time
func CreateOutcomeMessage(requestID, orderID string, outcome *RoutingOutcome) *OutcomeMessage {
	return &OutcomeMessage{
		RequestID: requestID,
		OrderID:   orderID,
		Outcome:   outcome,
		Timestamp: time.Now().UTC(),
	}
}
