// Package billing implements the subscription lifecycle rules that govern
// customer plan and status changes. The rules live here, apart from the HTTP
// handlers, because they encode invariants that are easy to violate: one
// active subscription per customer, paid plans always billed, churned
// customers never left with live subscriptions.
package billing

import (
	"context"
	"errors"
	"time"

	"github.com/pulseboard/pulseboard/internal/idgen"
	"github.com/pulseboard/pulseboard/internal/ledger"
	"github.com/pulseboard/pulseboard/internal/logging"
	"github.com/pulseboard/pulseboard/internal/metrics"
	"github.com/pulseboard/pulseboard/internal/subscription"
	"github.com/pulseboard/pulseboard/internal/traces"
)

// Errors returned for rejected lifecycle requests. Both reject before any
// write happens, so a 400 response implies zero side effects.
var (
	// ErrPaidStatusLocked rejects status toggles on customers holding an
	// active paid subscription. Cancel the subscription first, or churn the
	// customer to cancel it implicitly.
	ErrPaidStatusLocked = errors.New("billing: cannot update customer status while they have an active paid subscription; cancel it first or set status to churned")

	// ErrActivePaidPlan rejects plan changes while a paid subscription is
	// active. There is no implicit upgrade/downgrade path.
	ErrActivePaidPlan = errors.New("billing: customer has an active paid subscription; cancel it before changing plans")
)

const churned = "churned"

// Lifecycle applies plan and status transitions for customers.
type Lifecycle struct {
	subs subscription.Store
	txns ledger.Store
}

// New creates a lifecycle manager over the subscription and transaction stores.
func New(subs subscription.Store, txns ledger.Store) *Lifecycle {
	return &Lifecycle{subs: subs, txns: txns}
}

// ChangePlan runs the transition rules for a customer update. requestedPlan
// and requestedStatus are nil when the caller did not ask to change them.
// It returns the status the customer should end up with: usually the
// requested one, but forced to "active" when a paid plan was just started.
//
// Rule order:
//  1. Status-only change (not to churned) while an active paid subscription
//     exists is rejected.
//  2. Plan change while an active paid subscription exists is rejected.
//  3. Otherwise a plan change cancels any active subscription (Free included)
//     and creates a new active one at the catalogue price, atomically.
//  4. A paid plan records one success transaction for the first billing cycle
//     and overrides the customer status to active.
//
// Churn cancellation (rule 5) runs in Churn, after the caller has persisted
// the customer's status.
func (l *Lifecycle) ChangePlan(ctx context.Context, orgID, customerID string, requestedPlan *subscription.Plan, requestedStatus *string) (resolvedStatus *string, err error) {
	ctx, span := traces.StartSpan(ctx, "billing.ChangePlan",
		traces.OrgID(orgID), traces.CustomerID(customerID))
	defer span.End()

	resolvedStatus = requestedStatus

	// Rules 1 and 2: validate before any write.
	if requestedPlan == nil {
		if requestedStatus != nil && *requestedStatus != churned {
			active, err := l.subs.FindActiveByCustomer(ctx, orgID, customerID)
			if err != nil {
				return nil, err
			}
			if active != nil && subscription.Paid(active.Plan) {
				return nil, ErrPaidStatusLocked
			}
		}
		return resolvedStatus, nil
	}

	active, err := l.subs.FindActiveByCustomer(ctx, orgID, customerID)
	if err != nil {
		return nil, err
	}
	if active != nil && subscription.Paid(active.Plan) {
		return nil, ErrActivePaidPlan
	}

	// Rule 3: replace whatever is active with the new plan. The store does
	// the cancel and insert in one transaction so a crash or a concurrent
	// reader never observes two active subscriptions.
	now := time.Now()
	newSub := &subscription.Subscription{
		ID:             idgen.WithPrefix("sub_"),
		OrganizationID: orgID,
		CustomerID:     customerID,
		Plan:           *requestedPlan,
		PricePerMonth:  subscription.PriceFor(*requestedPlan),
		Status:         subscription.StatusActive,
		StartDate:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := l.subs.ReplaceActive(ctx, orgID, customerID, newSub); err != nil {
		return nil, err
	}
	metrics.SubscriptionsTotal.WithLabelValues(string(newSub.Plan), "replaced").Inc()

	// Rule 4: bill the first cycle and force the customer active.
	if subscription.Paid(*requestedPlan) {
		txn := &ledger.Transaction{
			ID:             idgen.WithPrefix("txn_"),
			OrganizationID: orgID,
			CustomerID:     customerID,
			SubscriptionID: newSub.ID,
			Amount:         newSub.PricePerMonth,
			Currency:       "USD",
			Status:         ledger.StatusSuccess,
			CreatedAt:      now,
		}
		if err := l.txns.Create(ctx, txn); err != nil {
			// The subscription is already committed; surface the failure
			// rather than leaving it silent.
			logging.L(ctx).Error("first billing transaction failed after subscription replace",
				"error", err, "subscription_id", newSub.ID, "customer_id", customerID)
			return nil, err
		}
		metrics.TransactionsTotal.WithLabelValues(string(ledger.StatusSuccess)).Inc()

		forced := "active"
		resolvedStatus = &forced
	}

	return resolvedStatus, nil
}

// StartPlan provisions a brand-new customer's first subscription and, for
// paid plans, the first billing transaction. Unlike ChangePlan it assumes no
// prior subscriptions exist.
func (l *Lifecycle) StartPlan(ctx context.Context, orgID, customerID string, plan subscription.Plan) (*subscription.Subscription, error) {
	ctx, span := traces.StartSpan(ctx, "billing.StartPlan",
		traces.OrgID(orgID), traces.CustomerID(customerID), traces.Plan(string(plan)))
	defer span.End()

	now := time.Now()
	s := &subscription.Subscription{
		ID:             idgen.WithPrefix("sub_"),
		OrganizationID: orgID,
		CustomerID:     customerID,
		Plan:           plan,
		PricePerMonth:  subscription.PriceFor(plan),
		Status:         subscription.StatusActive,
		StartDate:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := l.subs.Create(ctx, s); err != nil {
		return nil, err
	}
	metrics.SubscriptionsTotal.WithLabelValues(string(plan), "created").Inc()

	if subscription.Paid(plan) {
		txn := &ledger.Transaction{
			ID:             idgen.WithPrefix("txn_"),
			OrganizationID: orgID,
			CustomerID:     customerID,
			SubscriptionID: s.ID,
			Amount:         s.PricePerMonth,
			Currency:       "USD",
			Status:         ledger.StatusSuccess,
			CreatedAt:      now,
		}
		if err := l.txns.Create(ctx, txn); err != nil {
			return nil, err
		}
		metrics.TransactionsTotal.WithLabelValues(string(ledger.StatusSuccess)).Inc()
	}
	return s, nil
}

// Churn cancels every active subscription a customer holds. Idempotent:
// churning a customer with nothing active is a no-op.
func (l *Lifecycle) Churn(ctx context.Context, orgID, customerID string) error {
	ctx, span := traces.StartSpan(ctx, "billing.Churn",
		traces.OrgID(orgID), traces.CustomerID(customerID))
	defer span.End()

	n, err := l.subs.CancelActiveByCustomer(ctx, orgID, customerID, time.Now())
	if err != nil {
		return err
	}
	if n > 0 {
		logging.L(ctx).Info("churned customer, cancelled subscriptions",
			"customer_id", customerID, "cancelled", n)
	}
	return nil
}
