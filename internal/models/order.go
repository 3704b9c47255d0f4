package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the lifecycle status reported by the ordering platform.
// Values outside the known set are kept verbatim.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusAccepted  OrderStatus = "accepted"
	StatusCanceled  OrderStatus = "canceled"
	StatusReady     OrderStatus = "ready"
	StatusDelivered OrderStatus = "delivered"
)

// IsKnown reports whether the status is one the router has a rule for
func (s OrderStatus) IsKnown() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusCanceled, StatusReady, StatusDelivered:
		return true
	default:
		return false
	}
}

// OrderType represents how the order is fulfilled
type OrderType string

const (
	TypeDelivery OrderType = "delivery"
	TypePickup   OrderType = "pickup"
	TypeDineIn   OrderType = "dine_in"
)

func (t OrderType) IsKnown() bool {
	switch t {
	case TypeDelivery, TypePickup, TypeDineIn:
		return true
	default:
		return false
	}
}

// FlexibleID accepts either a JSON string or a JSON number and keeps its text form.
type FlexibleID string

func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = FlexibleID(n.String())
	return nil
}

func (id FlexibleID) String() string {
	return string(id)
}

// Order is a single order taken from a webhook payload
type Order struct {
	ID            FlexibleID      `json:"id"`
	Status        OrderStatus     `json:"status"`
	Type          OrderType       `json:"type"`
	Ready         bool            `json:"ready"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	CustomerEmail string          `json:"client_email"`
}

// Validate checks the fields the router depends on
func (o *Order) Validate() error {
	if o.CustomerEmail == "" {
		return ValidationError{
			Field:   "client_email",
			Message: "order does not contain a customer email",
		}
	}
	return nil
}

// WebhookPayload is the body posted by the ordering platform. Orders are kept
// raw so that only the first one is ever decoded.
type WebhookPayload struct {
	Orders []json.RawMessage `json:"orders"`
}

// DecodeWebhook parses a webhook body and returns its first order.
// Later orders in the batch are neither decoded nor validated.
func DecodeWebhook(body []byte) (*Order, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, ValidationError{
			Field:   "body",
			Message: fmt.Sprintf("invalid JSON format: %v", err),
		}
	}

	if len(payload.Orders) == 0 {
		return nil, ValidationError{
			Field:   "orders",
			Message: "orders array is missing or empty",
		}
	}

	var order Order
	if err := json.Unmarshal(payload.Orders[0], &order); err != nil {
		return nil, ValidationError{
			Field:   "orders[0]",
			Message: fmt.Sprintf("invalid order: %v", err),
		}
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	return &order, nil
}

// ValidationError marks input that was rejected before routing
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
