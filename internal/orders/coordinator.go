package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/cartsync"
	"github.com/angelmondragon/storefront-backend/internal/session"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// State is a step of the submission flow.
type State string

const (
	StateIdle              State = "idle"
	StateValidating        State = "validating"
	StateNotifyingCustomer State = "notifying_customer"
	StateNotifyingOperator State = "notifying_operator"
	StatePersisting        State = "persisting"
	StateCompleted         State = "completed"
	StateFailed            State = "failed"
)

var ErrSubmissionInFlight = pkgerrors.New(pkgerrors.CodeConflict, "order submission already in progress")

// SubmitResult describes a finished submission. Order is set only when the
// record was persisted; Sync is the write of the emptied cart.
type SubmitResult struct {
	State State
	Order *models.OrderRecord
	Sync  cartsync.SaveResult
}

type Option func(*Coordinator)

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// Coordinator runs validate, notify customer, notify operator, persist and
// clear, in that order. A failed step stops the flow and leaves the cart as it was.
type Coordinator struct {
	ledger   Ledger
	notifier Notifier
	guard    InFlightGuard
	logg     *logger.Logger
	metrics  *metrics.OrderMetrics
	now      func() time.Time
}

func NewCoordinator(ledger Ledger, notifier Notifier, guard InFlightGuard, logg *logger.Logger, opts ...Option) *Coordinator {
	if guard == nil {
		guard = NewLocalGuard()
	}
	c := &Coordinator{
		ledger:   ledger,
		notifier: notifier,
		guard:    guard,
		logg:     logg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) Submit(ctx context.Context, handle CartHandle) (SubmitResult, error) {
	ctx = c.logg.WithField(ctx, "cart_id", handle.ID())

	release, ok, err := c.guard.TryAcquire(ctx, handle.ID())
	if err != nil {
		return c.fail(ctx, StateIdle, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire submission guard"))
	}
	if !ok {
		c.logg.Warn(ctx, "order.submit_rejected_in_flight")
		c.metrics.IncSubmission("rejected")
		return SubmitResult{State: StateIdle}, ErrSubmissionInFlight
	}
	defer release()

	state, identity, tag, err := handle.Current(ctx)
	if err != nil {
		return c.fail(ctx, StateValidating, err)
	}
	if identity == nil {
		return c.fail(ctx, StateValidating, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to place an order"))
	}
	if strings.TrimSpace(identity.Email) == "" {
		return c.fail(ctx, StateValidating, pkgerrors.New(pkgerrors.CodeUnauthorized, "an email address is required to place an order"))
	}
	if state.IsEmpty() {
		return c.fail(ctx, StateValidating, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty"))
	}
	ctx = c.logg.WithUserID(ctx, identity.ID)

	orderDate := c.now().UTC()
	invoice := Invoice{
		CustomerName:  identity.DisplayName(),
		CustomerEmail: identity.Email,
		Summary:       Summary(state.Lines),
		Total:         state.TotalPrice,
		OrderDate:     orderDate,
	}

	if err := c.notifier.NotifyCustomer(ctx, invoice); err != nil {
		return c.fail(ctx, StateNotifyingCustomer, stepError(StateNotifyingCustomer, err, "send customer invoice"))
	}
	if err := c.notifier.NotifyOperator(ctx, invoice); err != nil {
		return c.fail(ctx, StateNotifyingOperator, stepError(StateNotifyingOperator, err, "send operator notification"))
	}

	record := &models.OrderRecord{
		ID:         uuid.New(),
		UserID:     identity.ID,
		UserEmail:  identity.Email,
		CartData:   copyLines(state.Lines),
		ItemNames:  pq.StringArray(ItemNames(state.Lines)),
		TotalPrice: state.TotalPrice,
		OrderDate:  orderDate,
		Status:     models.OrderStatusPending,
	}
	if err := c.ledger.Insert(ctx, record); err != nil {
		return c.fail(ctx, StatePersisting, stepError(StatePersisting, err, "persist order"))
	}

	_, sync, err := handle.ClearAndSync(ctx, tag)
	switch {
	case errors.Is(err, session.ErrIdentityChanged):
		c.logg.Warn(c.logg.WithField(ctx, "order_id", record.ID.String()), "order.clear_skipped_identity_changed")
	case err != nil:
		c.logg.Error(ctx, "order.clear_cart_failed", err)
	}

	c.logg.Info(c.logg.WithFields(ctx, map[string]any{
		"order_id":    record.ID.String(),
		"total_price": record.TotalPrice.StringFixed(2),
		"sync":        string(sync.Outcome),
	}), "order.submitted")
	c.metrics.IncSubmission(string(StateCompleted))

	return SubmitResult{State: StateCompleted, Order: record, Sync: sync}, nil
}

func (c *Coordinator) fail(ctx context.Context, at State, err error) (SubmitResult, error) {
	ctx = c.logg.WithField(ctx, "failed_at", string(at))
	if pkgerrors.HasCode(err, pkgerrors.CodeValidation) || pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		c.logg.Warn(ctx, "order.submit_rejected")
	} else {
		c.logg.Error(ctx, "order.submit_failed", err)
	}
	c.metrics.IncSubmission(string(StateFailed))
	return SubmitResult{State: StateFailed}, err
}

func stepError(step State, err error, message string) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message).WithDetails(map[string]string{"step": string(step)})
}

func copyLines(lines []cart.Line) []cart.Line {
	out := make([]cart.Line, len(lines))
	copy(out, lines)
	return out
}
