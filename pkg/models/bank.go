package models

// Bank is a payout bank as listed by the backend.
type Bank struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// AccountNumberLength is the length of a NUBAN account number.
const AccountNumberLength = 10

// BankAccountClaim is the payout account the user claims to own. Any edit to
// BankCode or AccountNumber invalidates Verified and AccountName.
type BankAccountClaim struct {
	BankCode      string `json:"bank_code"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name,omitempty"`
	Verified      bool   `json:"verified"`
	Verifying     bool   `json:"verifying"`
	Error         string `json:"error,omitempty"`
}

// Complete reports whether the claim has a bank and a full-length,
// all-digit account number.
func (c BankAccountClaim) Complete() bool {
	return c.BankCode != "" && IsAccountNumber(c.AccountNumber)
}

// IsAccountNumber reports whether s is exactly ten ASCII digits.
func IsAccountNumber(s string) bool {
	if len(s) != AccountNumberLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
