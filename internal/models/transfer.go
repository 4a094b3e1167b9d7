package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type Phase string

const (
	PhaseIdle              Phase = "IDLE"
	PhaseCheckingAllowance Phase = "CHECKING_ALLOWANCE"
	PhaseApprovalNeeded    Phase = "APPROVAL_NEEDED"
	PhaseApproving         Phase = "APPROVING"
	PhaseApprovalConfirmed Phase = "APPROVAL_CONFIRMED"
	PhaseBridging          Phase = "BRIDGING"
	PhaseConfirming        Phase = "CONFIRMING"
	PhaseConfirmed         Phase = "CONFIRMED"
	PhaseReverted          Phase = "REVERTED"
	PhaseTimedOut          Phase = "TIMED_OUT"
	PhaseCancelled         Phase = "CANCELLED"
)

var phaseTransitions = map[Phase][]Phase{
	PhaseIdle:              {PhaseCheckingAllowance, PhaseCancelled},
	PhaseCheckingAllowance: {PhaseApprovalNeeded, PhaseBridging, PhaseCancelled},
	PhaseApprovalNeeded:    {PhaseApproving, PhaseCancelled, PhaseTimedOut},
	PhaseApproving:         {PhaseApprovalConfirmed, PhaseReverted, PhaseTimedOut},
	PhaseApprovalConfirmed: {PhaseBridging},
	PhaseBridging:          {PhaseConfirming, PhaseCancelled, PhaseTimedOut, PhaseReverted},
	PhaseConfirming:        {PhaseConfirmed, PhaseReverted, PhaseTimedOut},
}

func (p Phase) Terminal() bool {
	switch p {
	case PhaseConfirmed, PhaseReverted, PhaseTimedOut, PhaseCancelled:
		return true
	}
	return false
}

func (p Phase) CanTransition(next Phase) bool {
	for _, n := range phaseTransitions[p] {
		if n == next {
			return true
		}
	}
	return false
}

type PendingTransfer struct {
	TokenAddress       string    `json:"tokenAddress"`
	RequestedAmount    string    `json:"requestedAmount"`
	AmountSmallestUnit string    `json:"amountSmallestUnit"`
	Decimals           uint8     `json:"decimals"`
	Destination        string    `json:"destination,omitempty"`
	Phase              Phase     `json:"phase"`
	ApprovalTxHash     string    `json:"approvalTxHash,omitempty"`
	TxHash             string    `json:"txHash,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func NewPendingTransfer(token, amount, destination string) *PendingTransfer {
	now := time.Now()
	return &PendingTransfer{
		TokenAddress:    token,
		RequestedAmount: amount,
		Destination:     destination,
		Phase:           PhaseIdle,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Advance moves the transfer to next, rejecting moves the phase graph does not allow.
func (t *PendingTransfer) Advance(next Phase) error {
	if t.Phase.Terminal() {
		return fmt.Errorf("transfer already settled in phase %s", t.Phase)
	}
	if !t.Phase.CanTransition(next) {
		return fmt.Errorf("invalid phase transition %s -> %s", t.Phase, next)
	}
	t.Phase = next
	t.UpdatedAt = time.Now()
	return nil
}

type OutcomeStatus string

const (
	OutcomeConfirming     OutcomeStatus = "confirming"
	OutcomeApprovalNeeded OutcomeStatus = "approval_needed"
	OutcomeApproving      OutcomeStatus = "approving"
)

type BridgeOutcome struct {
	Status          OutcomeStatus    `json:"status"`
	TransactionHash string           `json:"transactionHash,omitempty"`
	Transfer        *PendingTransfer `json:"transfer"`
}

type ApprovalOutcome struct {
	Status          OutcomeStatus    `json:"status"`
	TransactionHash string           `json:"transactionHash"`
	Transfer        *PendingTransfer `json:"transfer"`
}

type EventStatus string

const (
	StatusConfirming EventStatus = "confirming"
	StatusConfirmed  EventStatus = "confirmed"
	StatusFailed     EventStatus = "failed"
)

// BridgeStatusEvent is the payload of the bridgeTransactionUpdate channel.
type BridgeStatusEvent struct {
	Status          EventStatus     `json:"status"`
	Phase           Phase           `json:"phase,omitempty"`
	TransactionHash string          `json:"transactionHash,omitempty"`
	Error           string          `json:"error,omitempty"`
	Receipt         json.RawMessage `json:"receipt,omitempty"`
	At              time.Time       `json:"at"`
}
