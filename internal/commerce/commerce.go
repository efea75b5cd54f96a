// Package commerce is the storefront collaborator boundary: fulfillment,
// cancellation and risk lookups against the commerce admin API.
package commerce

import "context"

// LineItem is one fulfillable line item within a fulfillment order.
type LineItem struct {
	ID       string
	Quantity int
}

// FulfillmentDetails groups the fulfillable line items of one
// fulfillment order.
type FulfillmentDetails struct {
	FulfillmentOrderID string
	LineItems          []LineItem
}

// RiskStatus is the remote risk and payment view of an order.
type RiskStatus struct {
	RiskLevel       string `json:"riskLevel"`
	IsCancelled     bool   `json:"isCancelled"`
	FinancialStatus string `json:"financialStatus"`
}

// Refunded reports whether the order was cancelled or money went back to
// the buyer, either of which invalidates a claim.
func (r RiskStatus) Refunded() bool {
	return r.IsCancelled || r.FinancialStatus == "REFUNDED" || r.FinancialStatus == "PARTIALLY_REFUNDED"
}

// Service is the commerce boundary consumed by the state machine.
type Service interface {
	// FulfillableLineItems returns the fulfillment orders that still
	// have quantity remaining for the given order.
	FulfillableLineItems(ctx context.Context, orderID string) ([]FulfillmentDetails, error)

	// FulfillLineItems creates a fulfillment for one fulfillment order.
	// A false return with nil error means the remote rejected the
	// request with user errors.
	FulfillLineItems(ctx context.Context, details FulfillmentDetails) (bool, error)

	// CancelOrder cancels the order remotely.
	CancelOrder(ctx context.Context, orderID, note string, notifyCustomer, restock bool) (bool, error)

	// OrderRiskAndFinancialStatus fetches the remote risk view. A nil
	// result with nil error means the remote has no record of the order.
	OrderRiskAndFinancialStatus(ctx context.Context, orderID string) (*RiskStatus, error)
}
