package order

import (
	"errors"
	"fmt"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
)

// ErrOrderIsNotConstructed is returned when an Order instance was not created
// through the NewOrder factory method.
var ErrOrderIsNotConstructed = errors.New("Order must be created via NewOrder constructor")

// PaymentMethod identifies how the customer pays for the order.
type PaymentMethod string

const (
	// PaymentCash is settled in cash on delivery.
	PaymentCash PaymentMethod = "cash"
	// PaymentCard is settled by card at order placement.
	PaymentCard PaymentMethod = "card"
)

// Validate checks the payment method against the known variants.
func (p PaymentMethod) Validate() error {
	switch p {
	case PaymentCash, PaymentCard:
		return nil
	default:
		return errs.NewValueIsInvalidErrorWithCause("paymentMethod", fmt.Errorf("%q is not a valid payment method", string(p)))
	}
}

// Order is the customer-facing aggregate root: one checkout producing one or
// more ShopOrder children, each progressing through its own shop-side
// lifecycle. The backing store owns the records; the engine holds this
// representation to track and react to them.
type Order struct {
	id            kernel.UUID
	createdAt     time.Time
	paymentMethod PaymentMethod
	totalAmount   float64
	shopOrders    []*ShopOrder

	isConstructed bool
}

// NewOrder creates an Order with validation. Requires at least one shop order
// child; all children must reference this order's id.
func NewOrder(
	id kernel.UUID,
	createdAt time.Time,
	paymentMethod PaymentMethod,
	totalAmount float64,
	shopOrders []*ShopOrder,
) (*Order, error) {
	o := &Order{
		isConstructed: true,
	}

	if err := errors.Join(
		o.setID(id),
		o.setCreatedAt(createdAt),
		o.setPaymentMethod(paymentMethod),
		o.setTotalAmount(totalAmount),
	); err != nil {
		return nil, err
	}

	if err := o.setShopOrders(shopOrders); err != nil {
		return nil, err
	}

	return o, nil
}

// Validate ensures the Order instance was properly constructed through NewOrder.
func (o *Order) Validate() error {
	if o == nil || !o.isConstructed {
		return ErrOrderIsNotConstructed
	}
	return nil
}

// IsEqual compares two orders by identifier.
func (o *Order) IsEqual(other *Order) bool {
	return other != nil && o.id.IsEqual(other.id)
}

// ID returns the order's unique identifier.
func (o *Order) ID() kernel.UUID {
	return o.id
}

// CreatedAt returns the checkout time.
func (o *Order) CreatedAt() time.Time {
	return o.createdAt
}

// PaymentMethod returns the customer's payment method.
func (o *Order) PaymentMethod() PaymentMethod {
	return o.paymentMethod
}

// TotalAmount returns the checkout total across all shop orders.
func (o *Order) TotalAmount() float64 {
	return o.totalAmount
}

// ShopOrders returns the per-shop children. The slice is shared with the
// aggregate; callers must not reorder it.
func (o *Order) ShopOrders() []*ShopOrder {
	return o.shopOrders
}

// ShopOrderByID finds a child by its shop-order id.
func (o *Order) ShopOrderByID(id kernel.UUID) (*ShopOrder, error) {
	for _, so := range o.shopOrders {
		if so.ID().IsEqual(id) {
			return so, nil
		}
	}
	return nil, errs.NewObjectNotFoundError("shopOrderId", id.String())
}

func (o *Order) setID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	o.id = id
	return nil
}

func (o *Order) setCreatedAt(createdAt time.Time) error {
	if createdAt.IsZero() {
		return errs.NewValueIsRequiredError("createdAt")
	}
	o.createdAt = createdAt
	return nil
}

func (o *Order) setPaymentMethod(paymentMethod PaymentMethod) error {
	if err := paymentMethod.Validate(); err != nil {
		return err
	}
	o.paymentMethod = paymentMethod
	return nil
}

func (o *Order) setTotalAmount(totalAmount float64) error {
	if totalAmount < 0 {
		return errs.NewValueIsInvalidErrorWithCause("totalAmount", fmt.Errorf("%g is negative", totalAmount))
	}
	o.totalAmount = totalAmount
	return nil
}

func (o *Order) setShopOrders(shopOrders []*ShopOrder) error {
	if len(shopOrders) == 0 {
		return errs.NewValueIsRequiredError("shopOrders")
	}

	for _, so := range shopOrders {
		if err := so.Validate(); err != nil {
			return err
		}
		if !so.OrderID().IsEqual(o.id) {
			return errs.NewValueIsInvalidErrorWithCause(
				"shopOrders",
				fmt.Errorf("shop order %s belongs to order %s", so.ID(), so.OrderID()),
			)
		}
	}

	o.shopOrders = shopOrders
	return nil
}
