// Package payments wraps the Stripe API for organization billing identity.
// When no API key is configured the client is a no-op, so local and demo
// setups run without Stripe credentials.
package payments

import (
	"github.com/stripe/stripe-go/v81"
	stripecustomer "github.com/stripe/stripe-go/v81/customer"
)

// Client talks to Stripe. The zero value is disabled.
type Client struct {
	enabled bool
}

// NewClient configures the Stripe SDK. An empty key returns a disabled client.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return &Client{}
	}
	stripe.Key = apiKey
	return &Client{enabled: true}
}

// Enabled reports whether Stripe calls will be made.
func (c *Client) Enabled() bool {
	return c.enabled
}

// CreateCustomer registers an organization as a Stripe customer and returns
// the Stripe customer ID. Returns "" without error when disabled.
func (c *Client) CreateCustomer(name, email string) (string, error) {
	if !c.enabled {
		return "", nil
	}
	cust, err := stripecustomer.New(&stripe.CustomerParams{
		Name:  stripe.String(name),
		Email: stripe.String(email),
	})
	if err != nil {
		return "", err
	}
	return cust.ID, nil
}
