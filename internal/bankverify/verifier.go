// Package bankverify resolves payout bank accounts to holder names and
// serves the cached list of supported banks.
package bankverify

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/stackswap/internal/backend"
	"github.com/seenimoa/stackswap/internal/infra"
	"github.com/seenimoa/stackswap/pkg/models"
)

// User-facing messages.
const (
	MsgInvalidInput = "Enter a valid 10-digit account number and select a bank."
	MsgRejected     = "Verification failed."
	MsgUnreachable  = "Could not reach server."
)

// Resolver looks up the holder of an account. *backend.Client satisfies it.
type Resolver interface {
	VerifyAccount(ctx context.Context, bankCode, accountNumber string) (string, error)
}

// Outcome is the result of one verification attempt.
type Outcome struct {
	AccountName string
	Verified    bool
	Rejected    bool // the service answered and refused the account
	Message     string
}

// Verifier runs account verifications.
type Verifier struct {
	resolver Resolver
	logger   *logrus.Logger
	metrics  *infra.Metrics
}

// NewVerifier creates a verifier.
func NewVerifier(resolver Resolver, logger *logrus.Logger, metrics *infra.Metrics) *Verifier {
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Verifier{resolver: resolver, logger: logger, metrics: metrics}
}

// ShouldVerify reports whether claim is ready for an automatic check: a bank
// is selected, the number has exactly ten digits, and it is not verified.
func ShouldVerify(claim models.BankAccountClaim) bool {
	return claim.Complete() && !claim.Verified
}

// Verify resolves the account. Service failures and rejections both return
// Verified=false; Rejected and Message tell them apart.
func (v *Verifier) Verify(ctx context.Context, bankCode, accountNumber string) Outcome {
	if bankCode == "" || !models.IsAccountNumber(accountNumber) {
		return Outcome{Message: MsgInvalidInput}
	}

	fields := logrus.Fields{"bank": bankCode, "account": maskAccount(accountNumber)}
	name, err := v.resolver.VerifyAccount(ctx, bankCode, accountNumber)
	if err == nil {
		v.metrics.BankVerified("verified")
		v.logger.WithFields(fields).Debug("bank account verified")
		return Outcome{AccountName: name, Verified: true}
	}

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		v.metrics.BankVerified("rejected")
		v.logger.WithFields(fields).WithError(err).Info("bank account rejected")
		return Outcome{Rejected: true, Message: backend.MessageOf(err, MsgRejected)}
	}

	v.metrics.BankVerified("error")
	v.logger.WithFields(fields).WithError(err).Warn("bank verification unavailable")
	return Outcome{Message: MsgUnreachable}
}

// maskAccount keeps the last four digits for logs.
func maskAccount(n string) string {
	if len(n) <= 4 {
		return "****"
	}
	return "******" + n[len(n)-4:]
}
