package flow

import (
	"github.com/seenimoa/stackswap/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// State Machine
// ════════════════════════════════════════════════════════════════════

// edges lists every permitted transition. Reset is handled separately.
var edges = map[models.FlowState][]models.FlowState{
	models.StateEntry:                 {models.StateSellBankDetails, models.StateBuyDetails},
	models.StateSellBankDetails:       {models.StateSellConfirm, models.StateEntry},
	models.StateSellConfirm:           {models.StateSellAwaitingSignature, models.StateSellBankDetails},
	models.StateSellAwaitingSignature: {models.StateSellOnChainPending, models.StateSellConfirm},
	models.StateSellOnChainPending:    {models.StateSuccess},
	models.StateBuyDetails:            {models.StateBuyPayment, models.StateEntry},
	models.StateBuyPayment:            {models.StateSuccess, models.StateBuyDetails},
	models.StateSuccess:               {},
}

// predecessors maps states that support Back to their target.
// sell:awaiting_signature only leaves through the signer's answer, and
// sell:on_chain_pending has already broadcast funds.
var predecessors = map[models.FlowState]models.FlowState{
	models.StateSellBankDetails: models.StateEntry,
	models.StateSellConfirm:     models.StateSellBankDetails,
	models.StateBuyDetails:      models.StateEntry,
	models.StateBuyPayment:      models.StateBuyDetails,
}

// CanTransition reports whether from -> to is a permitted edge.
func CanTransition(from, to models.FlowState) bool {
	for _, s := range edges[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Successors returns the states reachable from s in one step.
func Successors(s models.FlowState) []models.FlowState {
	out := make([]models.FlowState, len(edges[s]))
	copy(out, edges[s])
	return out
}

// Predecessor returns the Back target of s.
func Predecessor(s models.FlowState) (models.FlowState, bool) {
	p, ok := predecessors[s]
	return p, ok
}

// CanReset reports whether a full reset is allowed from s.
func CanReset(s models.FlowState) bool {
	return s != models.StateSellAwaitingSignature
}

// States lists every flow state.
func States() []models.FlowState {
	return []models.FlowState{
		models.StateEntry,
		models.StateSellBankDetails,
		models.StateSellConfirm,
		models.StateSellAwaitingSignature,
		models.StateSellOnChainPending,
		models.StateBuyDetails,
		models.StateBuyPayment,
		models.StateSuccess,
	}
}
