package domain

import "time"

// OrderStatus enumerates the locally cached order states.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// DeliveryType describes how a line item is handed over.
type DeliveryType string

const (
	DeliveryTypeAccount DeliveryType = "account"
	DeliveryTypeManual  DeliveryType = "manual"
)

// PhysicalGoodsCategory is the item category that must be claimed in the
// dedicated physical-goods server.
const PhysicalGoodsCategory = "Physical Fruit"

// OrderItem is one purchased line item.
type OrderItem struct {
	ProductID    string       `json:"productId"`
	Title        string       `json:"title"`
	Image        string       `json:"image,omitempty"`
	Price        float64      `json:"price"`
	Quantity     int          `json:"quantity"`
	Category     string       `json:"category,omitempty"`
	DeliveryType DeliveryType `json:"deliveryType"`
	Status       string       `json:"status,omitempty"`
}

// Receiver is the account the order's items are delivered to.
type Receiver struct {
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	ID          string `json:"id,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
}

// Order is the locally cached view of an externally-owned order. The bot
// never owns order data; the commerce service is authoritative and this
// record only mirrors what claims need.
type Order struct {
	ID          string
	Email       *string
	Items       []OrderItem
	TotalAmount float64
	Status      OrderStatus
	Game        string
	Receiver    Receiver
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OnlyAccountItems reports whether every line item is account-delivered,
// which routes the claim to a different flow entirely.
func (o *Order) OnlyAccountItems() bool {
	if len(o.Items) == 0 {
		return false
	}
	for _, item := range o.Items {
		if item.DeliveryType != DeliveryTypeAccount {
			return false
		}
	}
	return true
}

// OnlyPhysicalGoods reports whether every line item is in the
// physical-goods category.
func (o *Order) OnlyPhysicalGoods() bool {
	if len(o.Items) == 0 {
		return false
	}
	for _, item := range o.Items {
		if item.Category != PhysicalGoodsCategory {
			return false
		}
	}
	return true
}

// NoPhysicalGoods reports whether no line item is in the physical-goods
// category.
func (o *Order) NoPhysicalGoods() bool {
	for _, item := range o.Items {
		if item.Category == PhysicalGoodsCategory {
			return false
		}
	}
	return true
}
