// Package wallet manages the connection to the user's wallet-signing
// provider: connect, disconnect, silent restore, and transfer requests.
package wallet

import (
	"context"
	"errors"

	"github.com/seenimoa/stackswap/pkg/models"
)

var (
	// ErrNoAddress is returned when the provider connected but reported no
	// asset-chain address.
	ErrNoAddress = errors.New("wallet returned no address")
	// ErrNotConnected is returned by operations that need a session.
	ErrNotConnected = errors.New("wallet not connected")
)

// TransferRequest asks the provider to sign and broadcast an asset transfer.
type TransferRequest struct {
	Token       string         `json:"token"` // correlation token echoed in the result
	Recipient   string         `json:"recipient"`
	AmountMicro int64          `json:"amount"` // atomic units
	Memo        string         `json:"memo"`
	Network     models.Network `json:"network"`
}

// TransferResult is the provider's answer to a TransferRequest. Exactly one
// of TxID, Cancelled or Err is meaningful.
type TransferResult struct {
	Token     string
	TxID      string
	Cancelled bool
	Err       error
}

// Succeeded reports whether the transfer was signed and has an id.
func (r TransferResult) Succeeded() bool {
	return r.Err == nil && !r.Cancelled && r.TxID != ""
}

// Provider is the wallet-signing capability. Implementations must not block
// RequestTransfer on the user; done is called once, possibly much later,
// from any goroutine.
type Provider interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected(ctx context.Context) bool
	StoredAddresses(ctx context.Context) (models.AddressSet, error)
	RequestTransfer(ctx context.Context, req TransferRequest, done func(TransferResult))
}
