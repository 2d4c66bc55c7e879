package models

// FlowState names the step a conversion attempt is on.
type FlowState string

const (
	StateEntry                 FlowState = "entry"
	StateSellBankDetails       FlowState = "sell:bank_details"
	StateSellConfirm           FlowState = "sell:confirm"
	StateSellAwaitingSignature FlowState = "sell:awaiting_signature"
	StateSellOnChainPending    FlowState = "sell:on_chain_pending"
	StateBuyDetails            FlowState = "buy:details"
	StateBuyPayment            FlowState = "buy:payment"
	StateSuccess               FlowState = "terminal:success"
)

// Terminal reports whether s absorbs the current attempt.
func (s FlowState) Terminal() bool {
	return s == StateSuccess
}
