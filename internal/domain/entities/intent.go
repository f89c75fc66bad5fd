package entities

import (
	"fmt"
	"math/big"
	"time"

	nexuserr "github.com/bimakw/nexus-orchestrator/internal/errors"
)

// IntentStatus is the closed set of intent lifecycle states
type IntentStatus string

const (
	IntentPending   IntentStatus = "pending"
	IntentApproved  IntentStatus = "approved"
	IntentExecuting IntentStatus = "executing"
	IntentCompleted IntentStatus = "completed"
	IntentFailed    IntentStatus = "failed"
)

var intentTransitions = map[IntentStatus][]IntentStatus{
	IntentPending:   {IntentApproved, IntentFailed},
	IntentApproved:  {IntentExecuting, IntentFailed},
	IntentExecuting: {IntentCompleted, IntentFailed},
}

// IsTerminal reports whether no further transitions are possible
func (s IntentStatus) IsTerminal() bool {
	return s == IntentCompleted || s == IntentFailed
}

// IsActive reports whether the intent occupies the current-intent slot
func (s IntentStatus) IsActive() bool {
	return s == IntentPending || s == IntentApproved || s == IntentExecuting
}

// CanTransition reports whether s -> to is a legal edge
func (s IntentStatus) CanTransition(to IntentStatus) bool {
	for _, next := range intentTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsValidIntentStatus checks the value is one of the enum members
func IsValidIntentStatus(status IntentStatus) bool {
	switch status {
	case IntentPending, IntentApproved, IntentExecuting, IntentCompleted, IntentFailed:
		return true
	default:
		return false
	}
}

// IntentSource is one funding leg of an intent
type IntentSource struct {
	ChainID   int64
	ChainName string
	Amount    *big.Int
}

// IntentDestination is where the net amount lands
type IntentDestination struct {
	ChainID   int64
	ChainName string
	Amount    *big.Int
}

// IntentFees is the fee breakdown. GasFee is denominated in wei of the native token.
type IntentFees struct {
	BridgeFee *big.Int
	GasFee    *big.Int
	TotalFee  *big.Int
}

// Intent is a concrete funding plan awaiting or undergoing execution
type Intent struct {
	ID            string
	Identity      string
	Token         string
	Decimals      int
	Requested     *big.Int
	Sources       []IntentSource
	Destination   IntentDestination
	Fees          IntentFees
	EstimatedTime int
	Status        IntentStatus
	// Shortfall is the part of Requested the sources could not cover
	Shortfall *big.Int
	TxHash    string
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SourceTotal sums the funding legs
func (i *Intent) SourceTotal() *big.Int {
	total := new(big.Int)
	for _, s := range i.Sources {
		total.Add(total, s.Amount)
	}
	return total
}

// Covered reports whether the sources cover the requested amount
func (i *Intent) Covered() bool {
	return i.Shortfall == nil || i.Shortfall.Sign() == 0
}

// Transition moves the intent along a legal edge; illegal edges leave it untouched
func (i *Intent) Transition(to IntentStatus) error {
	if !i.Status.CanTransition(to) {
		return fmt.Errorf("%s -> %s: %w", i.Status, to, nexuserr.ErrInvalidTransition)
	}
	i.Status = to
	i.UpdatedAt = time.Now().UTC()
	return nil
}

// Clone returns a deep copy safe to hand to observers
func (i *Intent) Clone() *Intent {
	if i == nil {
		return nil
	}
	c := *i
	c.Requested = copyInt(i.Requested)
	c.Shortfall = copyInt(i.Shortfall)
	c.Sources = make([]IntentSource, len(i.Sources))
	for idx, s := range i.Sources {
		s.Amount = copyInt(s.Amount)
		c.Sources[idx] = s
	}
	c.Destination.Amount = copyInt(i.Destination.Amount)
	c.Fees = IntentFees{
		BridgeFee: copyInt(i.Fees.BridgeFee),
		GasFee:    copyInt(i.Fees.GasFee),
		TotalFee:  copyInt(i.Fees.TotalFee),
	}
	return &c
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
