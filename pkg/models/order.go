package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle status of a backend order as seen by the
// controller. Only the flow state machine advances it.
type OrderStatus string

const (
	OrderAwaitingDeposit    OrderStatus = "AWAITING_DEPOSIT"
	OrderSignatureCancelled OrderStatus = "SIGNATURE_CANCELLED"
	OrderBroadcast          OrderStatus = "BROADCAST"
	OrderSettled            OrderStatus = "SETTLED"
	OrderAwaitingPayment    OrderStatus = "AWAITING_PAYMENT"
	OrderPaymentCancelled   OrderStatus = "PAYMENT_CANCELLED"
	OrderPaid               OrderStatus = "PAID"
)

// DepositInstructions tell the wallet where to send the asset.
type DepositInstructions struct {
	SendTo           string    `json:"sendTo"`
	Amount           string    `json:"amount"`
	Memo             string    `json:"memo"`
	ExpiresAt        time.Time `json:"expiresAt"`
	ExpiresInMinutes int       `json:"expiresInMinutes"`
}

// PayoutAccount is the verified bank account echoed back on an offramp order.
type PayoutAccount struct {
	AccountName   string `json:"accountName"`
	AccountNumber string `json:"accountNumber"`
	BankName      string `json:"bankName"`
}

// OfframpOrder is a sell order accepted by the backend.
type OfframpOrder struct {
	Reference    string              `json:"transactionReference"`
	AssetAmount  decimal.Decimal     `json:"tokenAmount"`
	NetFiat      decimal.Decimal     `json:"ngnAmount"`
	GrossFiat    decimal.Decimal     `json:"grossNGN"`
	FlatFee      decimal.Decimal     `json:"flatFeeNGN"`
	Deposit      DepositInstructions `json:"depositInstructions"`
	Bank         PayoutAccount       `json:"bank"`
	Status       OrderStatus         `json:"status"`
	TxID         string              `json:"txId,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
}

// PaymentConfig is the payment-gateway checkout configuration issued by the
// backend for an onramp order. It is passed to the widget untouched.
type PaymentConfig struct {
	Amount               decimal.Decimal `json:"amount"`
	Reference            string          `json:"reference"`
	APIKey               string          `json:"apiKey"`
	ContractCode         string          `json:"contractCode"`
	CustomerFullName     string          `json:"customerFullName"`
	CustomerEmail        string          `json:"customerEmail"`
	CustomerMobileNumber string          `json:"customerMobileNumber"`
	PaymentDescription   string          `json:"paymentDescription"`
	PaymentMethods       []string        `json:"paymentMethods"`
	Currency             string          `json:"currency"`
}

// OnrampOrder is a buy order accepted by the backend.
type OnrampOrder struct {
	TransactionID    string          `json:"transactionId"`
	PaymentReference string          `json:"paymentReference"`
	AssetAmount      decimal.Decimal `json:"tokenAmount"`
	TotalPayable     decimal.Decimal `json:"totalPayableNGN"`
	Payment          PaymentConfig   `json:"monnifyConfig"`
	Status           OrderStatus     `json:"status"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// Contact is the buyer's contact detail required to open a payment.
type Contact struct {
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}
