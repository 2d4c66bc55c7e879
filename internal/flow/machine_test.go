package flow

import (
	"errors"
	"testing"

	"github.com/seenimoa/stackswap/pkg/models"
)

func TestEveryStateReachableFromEntry(t *testing.T) {
	seen := map[models.FlowState]bool{models.StateEntry: true}
	queue := []models.FlowState{models.StateEntry}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for _, next := range Successors(s) {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	for _, s := range States() {
		if !seen[s] {
			t.Errorf("state %s is unreachable from entry", s)
		}
	}
}

func TestSuccessIsAbsorbing(t *testing.T) {
	if got := Successors(models.StateSuccess); len(got) != 0 {
		t.Fatalf("success has successors %v", got)
	}
	if !models.StateSuccess.Terminal() {
		t.Fatal("success should be terminal")
	}
	if !CanReset(models.StateSuccess) {
		t.Fatal("reset must be allowed from success")
	}
}

func TestModesNeverCross(t *testing.T) {
	sell := map[models.FlowState]bool{
		models.StateSellBankDetails:       true,
		models.StateSellConfirm:           true,
		models.StateSellAwaitingSignature: true,
		models.StateSellOnChainPending:    true,
	}
	buy := map[models.FlowState]bool{
		models.StateBuyDetails: true,
		models.StateBuyPayment: true,
	}
	for _, from := range States() {
		for _, to := range Successors(from) {
			if (sell[from] && buy[to]) || (buy[from] && sell[to]) {
				t.Errorf("edge %s -> %s crosses modes", from, to)
			}
		}
	}
}

func TestBackTargetsAreEdges(t *testing.T) {
	for _, s := range States() {
		p, ok := Predecessor(s)
		if !ok {
			continue
		}
		if !CanTransition(s, p) {
			t.Errorf("back from %s to %s is not an edge", s, p)
		}
	}
}

func TestNoBackWhileSigningOrBroadcast(t *testing.T) {
	for _, s := range []models.FlowState{
		models.StateEntry,
		models.StateSellAwaitingSignature,
		models.StateSellOnChainPending,
		models.StateSuccess,
	} {
		if _, ok := Predecessor(s); ok {
			t.Errorf("%s should have no back target", s)
		}
	}
	if CanReset(models.StateSellAwaitingSignature) {
		t.Fatal("reset must be refused while awaiting signature")
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to models.FlowState
		want     bool
	}{
		{models.StateEntry, models.StateSellBankDetails, true},
		{models.StateEntry, models.StateBuyDetails, true},
		{models.StateEntry, models.StateSellConfirm, false},
		{models.StateSellConfirm, models.StateSellAwaitingSignature, true},
		{models.StateSellAwaitingSignature, models.StateSellConfirm, true},
		{models.StateSellAwaitingSignature, models.StateSellBankDetails, false},
		{models.StateSellOnChainPending, models.StateSuccess, true},
		{models.StateSellOnChainPending, models.StateSellConfirm, false},
		{models.StateBuyPayment, models.StateSuccess, true},
		{models.StateSuccess, models.StateEntry, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTransitionErrorUnwraps(t *testing.T) {
	err := error(&TransitionError{From: models.StateEntry, To: models.StateSellConfirm, Err: ErrWrongState})
	if !errors.Is(err, ErrWrongState) {
		t.Fatal("expected ErrWrongState")
	}
	if err.Error() != "transition entry -> sell:confirm: action not available in current state" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestJournal(t *testing.T) {
	j := NewJournal()
	j.Log(JournalEntry{Attempt: "a", From: models.StateEntry, To: models.StateSellBankDetails})
	j.Log(JournalEntry{Attempt: "a", From: models.StateSellBankDetails, To: models.StateSellConfirm})
	j.Log(JournalEntry{Attempt: "b", From: models.StateEntry, To: models.StateBuyDetails})

	if j.Count() != 3 {
		t.Fatalf("count = %d", j.Count())
	}
	entries := j.Entries()
	if entries[0].ID != "FJ-1" || entries[2].ID != "FJ-3" {
		t.Fatalf("unexpected ids %s %s", entries[0].ID, entries[2].ID)
	}
	if entries[0].Time.IsZero() {
		t.Fatal("time should be stamped")
	}
	if got := j.ForAttempt("a"); len(got) != 2 || got[1].To != models.StateSellConfirm {
		t.Fatalf("ForAttempt = %+v", got)
	}
	if got := j.Recent(1); len(got) != 1 || got[0].Attempt != "b" {
		t.Fatalf("Recent(1) = %+v", got)
	}
	if got := j.Recent(10); len(got) != 3 {
		t.Fatalf("Recent(10) len = %d", len(got))
	}
}
