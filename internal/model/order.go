package model

import "strings"

type OrderType string

const (
	OrderDelivery OrderType = "delivery"
	OrderPickup   OrderType = "pickup"
	OrderDineIn   OrderType = "dine_in"
)

func (t OrderType) Valid() bool {
	return t == OrderDelivery || t == OrderPickup || t == OrderDineIn
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderAccepted  OrderStatus = "accepted"
	OrderRejected  OrderStatus = "rejected"
	OrderCompleted OrderStatus = "completed"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderAccepted, OrderRejected, OrderCompleted:
		return true
	}
	return false
}

type Order struct {
	Meta
	Contact         string      `json:"contact"`
	CustomerName    string      `json:"customerName"`
	OrderType       OrderType   `json:"orderType"`
	Summary         string      `json:"summary"`
	DeliveryAddress string      `json:"deliveryAddress,omitempty"`
	Status          OrderStatus `json:"status"`
	Total           Money       `json:"total"`
}

func (*Order) Kind() Kind { return KindOrder }

func (o *Order) Normalize() {
	if o.Status == "" {
		o.Status = OrderPending
	}
}

func (o *Order) Validate() error {
	switch {
	case strings.TrimSpace(o.Contact) == "":
		return invalid("order contact is required")
	case !o.OrderType.Valid():
		return invalid("order type %q", o.OrderType)
	case !o.Status.Valid():
		return invalid("order status %q", o.Status)
	case o.Total < 0:
		return invalid("order total must not be negative")
	}
	return nil
}
