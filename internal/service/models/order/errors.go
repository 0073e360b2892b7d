package order

// Error is a business rule violation raised by the order aggregate.
// Code is stable and safe to expose to clients.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

var (
	ErrOrderLocked = &Error{
		Code:    "Order.Locked",
		Message: "order items cannot change once a payment is set",
	}
	ErrOrderIsLocked = &Error{
		Code:    "Order.IsLocked",
		Message: "order with a payment cannot be deleted",
	}
	ErrOrderItemNotFound = &Error{
		Code:    "Order.ItemNotFound",
		Message: "order item not found",
	}
	ErrPaymentAlreadySet = &Error{
		Code:    "Order.PaymentAlreadySet",
		Message: "payment is already set for this order",
	}
	ErrNoPaymentSet = &Error{
		Code:    "Order.NoPaymentSet",
		Message: "order has no payment",
	}
	ErrPaymentNotSet = &Error{
		Code:    "Order.PaymentNotSet",
		Message: "delivery cannot be created before payment",
	}
	ErrPaymentFailed = &Error{
		Code:    "Order.PaymentFailed",
		Message: "delivery cannot be created for a failed payment",
	}
	ErrPaymentAlreadyCompleted = &Error{
		Code:    "Order.PaymentAlreadyCompleted",
		Message: "payment is already completed",
	}
	ErrPaymentAlreadyFailed = &Error{
		Code:    "Order.PaymentAlreadyFailed",
		Message: "payment has already failed",
	}
	ErrDeliveryAlreadyExists = &Error{
		Code:    "Order.DeliveryAlreadyExists",
		Message: "delivery already exists for this order",
	}
	ErrNoDeliveryCreated = &Error{
		Code:    "Order.NoDeliveryCreated",
		Message: "order has no delivery",
	}
	ErrDeliveryAlreadyAssigned = &Error{
		Code:    "Order.DeliveryAlreadyAssigned",
		Message: "delivery is already assigned",
	}
	ErrNoDeliveryAssigned = &Error{
		Code:    "Order.NoDeliveryAssigned",
		Message: "delivery is not assigned",
	}
	ErrOrderAlreadyDelivered = &Error{
		Code:    "Order.AlreadyDelivered",
		Message: "order is already delivered",
	}
)
