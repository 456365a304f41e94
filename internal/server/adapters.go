package server

import (
	"context"
	"time"

	"github.com/pulseboard/pulseboard/internal/customer"
	"github.com/pulseboard/pulseboard/internal/idgen"
	"github.com/pulseboard/pulseboard/internal/logging"
	"github.com/pulseboard/pulseboard/internal/org"
	"github.com/pulseboard/pulseboard/internal/payments"
	"github.com/pulseboard/pulseboard/internal/subscription"
	"github.com/pulseboard/pulseboard/internal/validation"
)

// orgCreator provisions organizations during registration. Stripe mirroring
// is best effort: a Stripe outage must not block signups.
type orgCreator struct {
	orgs   org.Store
	stripe *payments.Client
}

func (oc *orgCreator) CreateOrganization(ctx context.Context, name, industry string) (string, error) {
	ind := org.Industry(industry)
	if !org.ValidIndustry(ind) {
		ind = org.IndustrySaaS
	}

	now := time.Now()
	o := &org.Organization{
		ID:        idgen.WithPrefix("org_"),
		Name:      validation.SanitizeString(name, 200),
		Industry:  ind,
		Timezone:  "UTC",
		Currency:  org.CurrencyUSD,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if oc.stripe.Enabled() {
		stripeID, err := oc.stripe.CreateCustomer(o.Name, "")
		if err != nil {
			logging.L(ctx).Warn("stripe customer creation failed", "error", err, "org", o.Name)
		} else {
			o.StripeCustomerID = stripeID
		}
	}

	if err := oc.orgs.Create(ctx, o); err != nil {
		return "", err
	}
	return o.ID, nil
}

// customerDirectory adapts the customer store to the subscription package's
// ownership and display needs.
type customerDirectory struct {
	customers customer.Store
}

func (d *customerDirectory) Exists(ctx context.Context, orgID, customerID string) (bool, error) {
	_, err := d.customers.Get(ctx, orgID, customerID)
	if err == customer.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d *customerDirectory) DisplayInfo(ctx context.Context, orgID string, customerIDs []string) (map[string]subscription.CustomerInfo, error) {
	out := make(map[string]subscription.CustomerInfo, len(customerIDs))
	for _, id := range customerIDs {
		c, err := d.customers.Get(ctx, orgID, id)
		if err == customer.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = subscription.CustomerInfo{Name: c.Name, Email: c.Email}
	}
	return out, nil
}

// subscriptionResolver lets the ledger verify subscription ownership without
// importing the subscription package's store directly.
type subscriptionResolver struct {
	subs subscription.Store
}

func (r *subscriptionResolver) ResolveCustomer(ctx context.Context, orgID, subscriptionID string) (string, error) {
	s, err := r.subs.Get(ctx, orgID, subscriptionID)
	if err != nil {
		return "", err
	}
	return s.CustomerID, nil
}

// activityRecorder bumps lastActiveAt when usage events arrive. TouchLastActive
// returns ErrNotFound for unknown customers, which the usage handler turns
// into a 404.
type activityRecorder struct {
	customers customer.Store
}

func (a *activityRecorder) RecordActivity(ctx context.Context, orgID, customerID string, at time.Time) error {
	return a.customers.TouchLastActive(ctx, orgID, customerID, at)
}
