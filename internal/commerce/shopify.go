package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/claim-bot/internal/config"
)

// ShopifyClient talks to the Shopify GraphQL admin API.
type ShopifyClient struct {
	endpoint string
	token    string
	http     *http.Client
	logger   *zap.Logger
}

// NewShopifyClient builds the client from configuration. Missing
// credentials are a fatal startup condition: the verification flow's
// risk check and every staff operation depend on this collaborator.
func NewShopifyClient(cfg config.CommerceConfig, logger *zap.Logger) (*ShopifyClient, error) {
	if cfg.ShopURL == "" || cfg.AdminToken == "" {
		return nil, errors.New("SHOPIFY_URL and SHOPIFY_ADMIN_API_TOKEN are required")
	}
	host := strings.TrimPrefix(strings.TrimPrefix(cfg.ShopURL, "https://"), "http://")
	return &ShopifyClient{
		endpoint: fmt.Sprintf("https://%s/admin/api/%s/graphql.json", host, cfg.APIVersion),
		token:    cfg.AdminToken,
		http:     &http.Client{Timeout: 15 * time.Second},
		logger:   logger,
	}, nil
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

func (c *ShopifyClient) do(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("commerce API returned status %d", resp.StatusCode)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphqlError  `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return err
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("commerce API error: %s", envelope.Errors[0].Message)
	}
	if out != nil && len(envelope.Data) > 0 {
		return json.Unmarshal(envelope.Data, out)
	}
	return nil
}

func orderGID(orderID string) string {
	return "gid://shopify/Order/" + orderID
}

const fulfillmentOrdersQuery = `
query GetFulfillmentOrdersWithLineItems($orderId: ID!) {
  order(id: $orderId) {
    id
    fulfillmentOrders(first: 10) {
      edges {
        node {
          id
          lineItems(first: 100) {
            edges {
              node {
                id
                remainingQuantity
              }
            }
          }
        }
      }
    }
  }
}`

// FulfillableLineItems implements Service.
func (c *ShopifyClient) FulfillableLineItems(ctx context.Context, orderID string) ([]FulfillmentDetails, error) {
	var data struct {
		Order *struct {
			FulfillmentOrders struct {
				Edges []struct {
					Node struct {
						ID        string `json:"id"`
						LineItems struct {
							Edges []struct {
								Node struct {
									ID                string `json:"id"`
									RemainingQuantity int    `json:"remainingQuantity"`
								} `json:"node"`
							} `json:"edges"`
						} `json:"lineItems"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"fulfillmentOrders"`
		} `json:"order"`
	}

	if err := c.do(ctx, fulfillmentOrdersQuery, map[string]any{"orderId": orderGID(orderID)}, &data); err != nil {
		return nil, err
	}
	if data.Order == nil {
		c.logger.Warn("no fulfillment orders found", zap.String("order_id", orderID))
		return nil, nil
	}

	var details []FulfillmentDetails
	for _, edge := range data.Order.FulfillmentOrders.Edges {
		var items []LineItem
		for _, lineEdge := range edge.Node.LineItems.Edges {
			if lineEdge.Node.RemainingQuantity > 0 {
				items = append(items, LineItem{ID: lineEdge.Node.ID, Quantity: lineEdge.Node.RemainingQuantity})
			}
		}
		if len(items) > 0 {
			details = append(details, FulfillmentDetails{FulfillmentOrderID: edge.Node.ID, LineItems: items})
		}
	}
	return details, nil
}

const fulfillmentCreateMutation = `
mutation fulfillmentCreateV2($fulfillment: FulfillmentV2Input!) {
  fulfillmentCreateV2(fulfillment: $fulfillment) {
    fulfillment {
      id
      status
    }
    userErrors {
      field
      message
    }
  }
}`

// FulfillLineItems implements Service.
func (c *ShopifyClient) FulfillLineItems(ctx context.Context, details FulfillmentDetails) (bool, error) {
	if !strings.HasPrefix(details.FulfillmentOrderID, "gid://shopify/FulfillmentOrder/") {
		return false, fmt.Errorf("invalid fulfillment order id: %s", details.FulfillmentOrderID)
	}
	if len(details.LineItems) == 0 {
		return false, errors.New("no line items to fulfill")
	}

	lineItems := make([]map[string]any, len(details.LineItems))
	for i, item := range details.LineItems {
		lineItems[i] = map[string]any{"id": item.ID, "quantity": item.Quantity}
	}

	var data struct {
		FulfillmentCreateV2 *struct {
			Fulfillment *struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"fulfillment"`
			UserErrors []struct {
				Field   []string `json:"field"`
				Message string   `json:"message"`
			} `json:"userErrors"`
		} `json:"fulfillmentCreateV2"`
	}

	variables := map[string]any{
		"fulfillment": map[string]any{
			"lineItemsByFulfillmentOrder": []map[string]any{{
				"fulfillmentOrderId":        details.FulfillmentOrderID,
				"fulfillmentOrderLineItems": lineItems,
			}},
		},
	}
	if err := c.do(ctx, fulfillmentCreateMutation, variables, &data); err != nil {
		return false, err
	}

	result := data.FulfillmentCreateV2
	if result == nil || result.Fulfillment == nil {
		return false, nil
	}
	if len(result.UserErrors) > 0 {
		c.logger.Error("fulfillment rejected",
			zap.String("fulfillment_order_id", details.FulfillmentOrderID),
			zap.String("first_error", result.UserErrors[0].Message))
		return false, nil
	}
	return result.Fulfillment.Status == "SUCCESS", nil
}

const orderCancelMutation = `
mutation orderCancel($orderId: ID!, $reason: OrderCancelReason!, $refund: Boolean!, $restock: Boolean!, $notifyCustomer: Boolean, $staffNote: String) {
  orderCancel(orderId: $orderId, reason: $reason, refund: $refund, restock: $restock, notifyCustomer: $notifyCustomer, staffNote: $staffNote) {
    job {
      id
    }
    orderCancelUserErrors {
      field
      message
    }
  }
}`

// CancelOrder implements Service.
func (c *ShopifyClient) CancelOrder(ctx context.Context, orderID, note string, notifyCustomer, restock bool) (bool, error) {
	var data struct {
		OrderCancel *struct {
			Job *struct {
				ID string `json:"id"`
			} `json:"job"`
			OrderCancelUserErrors []struct {
				Field   []string `json:"field"`
				Message string   `json:"message"`
			} `json:"orderCancelUserErrors"`
		} `json:"orderCancel"`
	}

	variables := map[string]any{
		"orderId":        orderGID(orderID),
		"reason":         "OTHER",
		"refund":         true,
		"restock":        restock,
		"notifyCustomer": notifyCustomer,
		"staffNote":      note,
	}
	if err := c.do(ctx, orderCancelMutation, variables, &data); err != nil {
		return false, err
	}
	if data.OrderCancel == nil {
		return false, nil
	}
	if len(data.OrderCancel.OrderCancelUserErrors) > 0 {
		message := data.OrderCancel.OrderCancelUserErrors[0].Message
		// Cancelling an already-cancelled order is success for our
		// purposes: the desired end state holds.
		if strings.Contains(strings.ToLower(message), "already cancelled") {
			return true, nil
		}
		c.logger.Error("order cancellation rejected",
			zap.String("order_id", orderID), zap.String("first_error", message))
		return false, nil
	}
	return true, nil
}

const orderRiskQuery = `
query GetOrderRisk($orderId: ID!) {
  order(id: $orderId) {
    id
    cancelledAt
    displayFinancialStatus
    risk {
      assessments {
        riskLevel
      }
    }
  }
}`

// OrderRiskAndFinancialStatus implements Service.
func (c *ShopifyClient) OrderRiskAndFinancialStatus(ctx context.Context, orderID string) (*RiskStatus, error) {
	var data struct {
		Order *struct {
			CancelledAt            *string `json:"cancelledAt"`
			DisplayFinancialStatus string  `json:"displayFinancialStatus"`
			Risk                   struct {
				Assessments []struct {
					RiskLevel string `json:"riskLevel"`
				} `json:"assessments"`
			} `json:"risk"`
		} `json:"order"`
	}

	if err := c.do(ctx, orderRiskQuery, map[string]any{"orderId": orderGID(orderID)}, &data); err != nil {
		return nil, err
	}
	if data.Order == nil {
		return nil, nil
	}

	status := &RiskStatus{
		IsCancelled:     data.Order.CancelledAt != nil,
		FinancialStatus: data.Order.DisplayFinancialStatus,
		RiskLevel:       "LOW",
	}
	// Take the most severe assessment the platform reports.
	for _, assessment := range data.Order.Risk.Assessments {
		if assessment.RiskLevel == "HIGH" || (assessment.RiskLevel == "MEDIUM" && status.RiskLevel == "LOW") {
			status.RiskLevel = assessment.RiskLevel
		}
	}
	return status, nil
}
