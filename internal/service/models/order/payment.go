package order

import (
	"database/sql/driver"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is the way a customer pays for an order.
type PaymentMethod string

const (
	PaymentMethodCard         PaymentMethod = "Card"
	PaymentMethodCash         PaymentMethod = "Cash"
	PaymentMethodWallet       PaymentMethod = "Wallet"
	PaymentMethodBankTransfer PaymentMethod = "BankTransfer"
)

var ErrInvalidPaymentMethod = errors.New("invalid payment method")

func (m PaymentMethod) String() string {
	return string(m)
}

func (m PaymentMethod) Value() (driver.Value, error) {
	return m.String(), nil
}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case PaymentMethodCard, PaymentMethodCash, PaymentMethodWallet, PaymentMethodBankTransfer:
		return PaymentMethod(s), nil
	default:
		return "", ErrInvalidPaymentMethod
	}
}

// PaymentStatus only moves forward: Pending -> Completed | Failed.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "Pending"
	PaymentStatusCompleted PaymentStatus = "Completed"
	PaymentStatusFailed    PaymentStatus = "Failed"
)

// Payment is the single payment attached to an order.
type Payment struct {
	ID            uuid.UUID       `json:"id"`
	OrderID       uuid.UUID       `json:"orderId"`
	Amount        decimal.Decimal `json:"amount"`
	Method        PaymentMethod   `json:"method"`
	TransactionID string          `json:"transactionId"`
	Status        PaymentStatus   `json:"status"`
}
