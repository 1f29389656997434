package events

import (
	"math/big"

	"evregistry/core/types"
)

const (
	TypeBondDeposited = "bond.deposited"
	TypeBondLocked    = "bond.locked"
	TypeBondPenalized = "bond.penalized"
	TypeBondRefunded  = "bond.refunded"
)

// BondDeposited is emitted when a manufacturer adds to its compliance bond.
type BondDeposited struct {
	Manufacturer [20]byte
	Amount       *big.Int
	NewBalance   *big.Int
}

func (BondDeposited) EventType() string { return TypeBondDeposited }

func (e BondDeposited) Event() *types.Event {
	return &types.Event{
		Type: TypeBondDeposited,
		Attributes: map[string]string{
			"manufacturer": addrToString(e.Manufacturer),
			"amount":       formatAmount(e.Amount),
			"newBalance":   formatAmount(e.NewBalance),
		},
	}
}

// BondLocked is emitted when a bond passes the minimum-deposit gate.
type BondLocked struct {
	Manufacturer [20]byte
	Balance      *big.Int
	Minimum      *big.Int
}

func (BondLocked) EventType() string { return TypeBondLocked }

func (e BondLocked) Event() *types.Event {
	return &types.Event{
		Type: TypeBondLocked,
		Attributes: map[string]string{
			"manufacturer": addrToString(e.Manufacturer),
			"balance":      formatAmount(e.Balance),
			"minimum":      formatAmount(e.Minimum),
		},
	}
}

// BondPenalized is emitted when the government forfeits part of a bond. The
// requested amount is retained alongside the applied amount so downstream
// auditors can detect clamped penalties.
type BondPenalized struct {
	Manufacturer [20]byte
	PenalizedBy  [20]byte
	Requested    *big.Int
	Applied      *big.Int
	NewBalance   *big.Int
}

func (BondPenalized) EventType() string { return TypeBondPenalized }

func (e BondPenalized) Event() *types.Event {
	return &types.Event{
		Type: TypeBondPenalized,
		Attributes: map[string]string{
			"manufacturer": addrToString(e.Manufacturer),
			"penalizedBy":  addrToString(e.PenalizedBy),
			"requested":    formatAmount(e.Requested),
			"applied":      formatAmount(e.Applied),
			"newBalance":   formatAmount(e.NewBalance),
		},
	}
}

// BondRefunded is emitted when manufacturer removal zeroes a deposit under
// the refund-on-removal policy.
type BondRefunded struct {
	Manufacturer [20]byte
	Amount       *big.Int
}

func (BondRefunded) EventType() string { return TypeBondRefunded }

func (e BondRefunded) Event() *types.Event {
	return &types.Event{
		Type: TypeBondRefunded,
		Attributes: map[string]string{
			"manufacturer": addrToString(e.Manufacturer),
			"amount":       formatAmount(e.Amount),
		},
	}
}
