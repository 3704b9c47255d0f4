package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"loyalty-relay/internal/logger"
	"loyalty-relay/internal/loyalty"
	"loyalty-relay/internal/models"
)

const reasonUnhandledStatus = "unhandled status"

// Directory resolves a customer email to a loyalty account
type Directory interface {
	Resolve(ctx context.Context, email string) (*models.LoyaltyAccount, error)
}

// Actions mutates a loyalty account
type Actions interface {
	SendMessage(ctx context.Context, accountID, text string) error
	AdjustPoints(ctx context.Context, accountID string, delta int) error
}

// Recorder receives every outcome after routing. Failures are logged and
// never change the outcome.
type Recorder interface {
	Record(ctx context.Context, requestID string, order *models.Order, outcome *models.RoutingOutcome) error
}

// Router turns one order into provider calls. It keeps no state between calls.
type Router struct {
	directory    Directory
	actions      Actions
	settleMargin time.Duration
	recorders    []Recorder
	logger       *logger.Logger
}

type Option func(*Router)

// WithSettleMargin waits d between consecutive provider calls of one plan
func WithSettleMargin(d time.Duration) Option {
	return func(r *Router) {
		r.settleMargin = d
	}
}

// WithRecorders attaches outcome recorders
func WithRecorders(recorders ...Recorder) Option {
	return func(r *Router) {
		r.recorders = append(r.recorders, recorders...)
	}
}

// New creates a router
func New(directory Directory, actions Actions, log *logger.Logger, opts ...Option) *Router {
	r := &Router{
		directory: directory,
		actions:   actions,
		logger:    log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle routes a single order. A non-nil error means the order was malformed
// and no provider call was made; every other case is reported in the outcome.
// Cancellation of ctx is not honored: once started, the plan runs to the end,
// bounded only by the per-call provider timeouts.
func (r *Router) Handle(ctx context.Context, requestID string, order *models.Order) (*models.RoutingOutcome, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	outcome := r.route(ctx, requestID, order)
	r.record(ctx, requestID, order, outcome)
	return outcome, nil
}

func (r *Router) route(ctx context.Context, requestID string, order *models.Order) *models.RoutingOutcome {
	account, err := r.directory.Resolve(ctx, order.CustomerEmail)
	if err != nil {
		reason := lookupReason(err)
		r.logger.Info("order_ignored", "Customer lookup did not resolve an account", requestID, map[string]interface{}{
			"order_id": order.ID.String(),
			"reason":   reason,
			"cause":    err.Error(),
		})
		return models.Ignored(reason)
	}

	plan := Plan(order)
	if plan.Unhandled {
		r.logger.Info("order_ignored", fmt.Sprintf("No rule for order status %q", order.Status), requestID, map[string]interface{}{
			"order_id": order.ID.String(),
			"status":   string(order.Status),
		})
		return models.Ignored(reasonUnhandledStatus)
	}

	results := r.execute(ctx, requestID, account.ID, plan)

	return &models.RoutingOutcome{
		Status: models.OutcomeSuccess,
		Processed: &models.ProcessedOrder{
			OrderID:    order.ID.String(),
			CustomerID: account.ID,
			Status:     order.Status,
		},
		Actions: results,
	}
}

// execute runs the plan strictly in order, one call at a time
func (r *Router) execute(ctx context.Context, requestID, accountID string, plan ActionPlan) []models.ActionResult {
	results := make([]models.ActionResult, 0, len(plan.Steps))
	previousOK := true
	dispatched := 0

	for _, step := range plan.Steps {
		if step.Gated && !previousOK {
			r.logger.Debug("action_skipped", fmt.Sprintf("Skipping %s after failed step", step.Action), requestID, map[string]interface{}{
				"customer_id": accountID,
			})
			results = append(results, models.ActionResult{Action: step.Action, Skipped: true})
			previousOK = false
			continue
		}

		if dispatched > 0 {
			r.settle(ctx)
		}
		dispatched++

		err := r.dispatch(ctx, accountID, step.Action)
		result := models.ActionResult{Action: step.Action, Succeeded: err == nil}
		if err != nil {
			result.Error = actionErrorReason(err)
			r.logger.Error("action_failed", fmt.Sprintf("Provider call %s failed", step.Action), requestID, err, map[string]interface{}{
				"customer_id": accountID,
			})
		} else {
			r.logger.Debug("action_sent", fmt.Sprintf("Provider call %s succeeded", step.Action), requestID, map[string]interface{}{
				"customer_id": accountID,
			})
		}
		results = append(results, result)
		previousOK = err == nil
	}

	return results
}

func (r *Router) dispatch(ctx context.Context, accountID string, action models.NotificationAction) error {
	switch action.Kind {
	case models.ActionSendMessage:
		return r.actions.SendMessage(ctx, accountID, action.Message)
	case models.ActionAdjustPoints:
		return r.actions.AdjustPoints(ctx, accountID, action.Points)
	default:
		return fmt.Errorf("unknown action kind %q", action.Kind)
	}
}

// settle gives the provider time to apply the previous mutation
func (r *Router) settle(ctx context.Context) {
	if r.settleMargin <= 0 {
		return
	}
	timer := time.NewTimer(r.settleMargin)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (r *Router) record(ctx context.Context, requestID string, order *models.Order, outcome *models.RoutingOutcome) {
	for _, rec := range r.recorders {
		if err := rec.Record(ctx, requestID, order, outcome); err != nil {
			r.logger.Error("outcome_record_failed", "Failed to record routing outcome", requestID, err, map[string]interface{}{
				"order_id": order.ID.String(),
			})
		}
	}
}

// actionErrorReason is the category exposed in outcomes; the raw error is only logged
func actionErrorReason(err error) string {
	var statusErr *loyalty.StatusError
	var transportErr *loyalty.TransportError

	switch {
	case errors.Is(err, loyalty.ErrNotConfigured):
		return "loyalty provider token is not configured"
	case errors.As(err, &statusErr):
		return fmt.Sprintf("HTTP %d", statusErr.Code)
	case errors.As(err, &transportErr):
		return "provider unreachable"
	default:
		return "provider call failed"
	}
}

func lookupReason(err error) string {
	var statusErr *loyalty.StatusError
	var transportErr *loyalty.TransportError
	var decodeErr *loyalty.DecodeError

	switch {
	case errors.Is(err, loyalty.ErrNotFound):
		return "customer has no digital card installed"
	case errors.Is(err, loyalty.ErrNotConfigured):
		return "loyalty provider token is not configured"
	case errors.As(err, &statusErr):
		return fmt.Sprintf("loyalty provider lookup failed with HTTP status %d", statusErr.Code)
	case errors.As(err, &transportErr):
		return "loyalty provider unreachable"
	case errors.As(err, &decodeErr):
		return "loyalty provider returned an unreadable customer list"
	default:
		return "loyalty provider lookup failed"
	}
}
