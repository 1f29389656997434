package bond

import (
	"fmt"
	"math/big"

	"evregistry/core/events"
	"evregistry/native/roles"
)

// Symbols the ledger quotes the collateral requirement in. The oracle is
// asked for CollateralCurrency per NativeCurrency.
const (
	CollateralCurrency = "GBP"
	NativeCurrency     = "ETH"
)

// DefaultCollateralFiat is the fiat-denominated collateral a manufacturer
// must cover before its deposit can lock. Overridable through configuration.
const DefaultCollateralFiat = "5000"

// NativeDecimals is the scale of native amounts (wei-style 18 decimals).
const NativeDecimals = 18

// Account tracks a manufacturer's compliance bond.
type Account struct {
	Balance *big.Int
	Locked  bool
}

// Clone returns a defensive copy.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := &Account{Locked: a.Locked, Balance: big.NewInt(0)}
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	}
	return clone
}

func (a *Account) normalize() {
	if a.Balance == nil {
		a.Balance = big.NewInt(0)
	}
}

// State is the narrow view of registry storage the bond engine needs. A
// missing account reads back as a zero-balance unlocked account.
type State interface {
	HasRole(role string, addr [20]byte) (bool, error)
	BondAccount(addr [20]byte) (*Account, error)
	PutBondAccount(addr [20]byte, account *Account) error
}

// Engine owns deposit balances and the lock gate consumed by passport
// minting. Amount arithmetic is big.Int throughout; balances never go
// negative and penalties clamp instead of failing.
type Engine struct {
	state          State
	oracle         PriceOracle
	emitter        events.Emitter
	collateralFiat string
}

func NewEngine() *Engine {
	return &Engine{
		emitter:        events.NoopEmitter{},
		collateralFiat: DefaultCollateralFiat,
	}
}

// SetState wires the engine to the registry state.
func (e *Engine) SetState(state State) { e.state = state }

// SetOracle wires the price feed used for the minimum-deposit calculation.
func (e *Engine) SetOracle(oracle PriceOracle) { e.oracle = oracle }

// SetEmitter configures the sink for bond events. Nil restores the no-op
// emitter.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetCollateral overrides the fiat collateral requirement.
func (e *Engine) SetCollateral(fiatAmount string) {
	if fiatAmount != "" {
		e.collateralFiat = fiatAmount
	}
}

func (e *Engine) requireRole(role string, caller [20]byte) error {
	ok, err := e.state.HasRole(role, caller)
	if err != nil {
		return fmt.Errorf("bond: check role: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnauthorized, role)
	}
	return nil
}

// MinimumDeposit converts the collateral requirement into native units at
// the current oracle rate. Pure read; fails with ErrOracleUnavailable when
// no valid price is available.
func (e *Engine) MinimumDeposit() (*big.Int, error) {
	if e.oracle == nil {
		return nil, ErrOracleUnavailable
	}
	quote, err := e.oracle.GetRate(CollateralCurrency, NativeCurrency)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	minimum, err := ComputeMinimumDeposit(e.collateralFiat, quote.Rate, NativeDecimals)
	if err != nil {
		return nil, err
	}
	return minimum, nil
}

// Deposit credits amount to the caller's bond. The external movement of the
// underlying funds is assumed atomic with this ledger update.
func (e *Engine) Deposit(caller [20]byte, amount *big.Int) error {
	if err := e.requireRole(roles.RoleManufacturer, caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	account, err := e.state.BondAccount(caller)
	if err != nil {
		return fmt.Errorf("bond: load account: %w", err)
	}
	account.normalize()
	account.Balance = new(big.Int).Add(account.Balance, amount)
	if err := e.state.PutBondAccount(caller, account); err != nil {
		return fmt.Errorf("bond: store account: %w", err)
	}
	e.emitter.Emit(events.BondDeposited{
		Manufacturer: caller,
		Amount:       new(big.Int).Set(amount),
		NewBalance:   new(big.Int).Set(account.Balance),
	})
	return nil
}

// Lock flips the compliance gate once the balance covers the oracle-derived
// minimum. Locking never changes the balance and cannot be repeated.
func (e *Engine) Lock(caller [20]byte) error {
	if err := e.requireRole(roles.RoleManufacturer, caller); err != nil {
		return err
	}
	account, err := e.state.BondAccount(caller)
	if err != nil {
		return fmt.Errorf("bond: load account: %w", err)
	}
	account.normalize()
	if account.Locked {
		return ErrAlreadyLocked
	}
	minimum, err := e.MinimumDeposit()
	if err != nil {
		return err
	}
	if account.Balance.Cmp(minimum) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientDeposit, account.Balance, minimum)
	}
	account.Locked = true
	if err := e.state.PutBondAccount(caller, account); err != nil {
		return fmt.Errorf("bond: store account: %w", err)
	}
	e.emitter.Emit(events.BondLocked{
		Manufacturer: caller,
		Balance:      new(big.Int).Set(account.Balance),
		Minimum:      minimum,
	})
	return nil
}

// Penalize forfeits up to amount from the manufacturer's bond. The amount is
// clamped to the available balance rather than rejected, so repeated or
// over-large penalties drain the bond to zero without erroring.
func (e *Engine) Penalize(caller, manufacturer [20]byte, amount *big.Int) (*big.Int, error) {
	if err := e.requireRole(roles.RoleGovernment, caller); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	account, err := e.state.BondAccount(manufacturer)
	if err != nil {
		return nil, fmt.Errorf("bond: load account: %w", err)
	}
	account.normalize()
	applied := new(big.Int).Set(amount)
	if applied.Cmp(account.Balance) > 0 {
		applied.Set(account.Balance)
	}
	account.Balance = new(big.Int).Sub(account.Balance, applied)
	if err := e.state.PutBondAccount(manufacturer, account); err != nil {
		return nil, fmt.Errorf("bond: store account: %w", err)
	}
	e.emitter.Emit(events.BondPenalized{
		Manufacturer: manufacturer,
		PenalizedBy:  caller,
		Requested:    new(big.Int).Set(amount),
		Applied:      new(big.Int).Set(applied),
		NewBalance:   new(big.Int).Set(account.Balance),
	})
	return applied, nil
}

// Account returns a copy of the manufacturer's bond state. Absent accounts
// read as zero balance, unlocked.
func (e *Engine) Account(principal [20]byte) (*Account, error) {
	account, err := e.state.BondAccount(principal)
	if err != nil {
		return nil, fmt.Errorf("bond: load account: %w", err)
	}
	account.normalize()
	return account.Clone(), nil
}

// IsLocked reports whether the manufacturer's bond has passed the lock gate.
func (e *Engine) IsLocked(principal [20]byte) (bool, error) {
	account, err := e.state.BondAccount(principal)
	if err != nil {
		return false, fmt.Errorf("bond: load account: %w", err)
	}
	return account.Locked, nil
}

// ResetAccount clears the lock when a manufacturer is removed and, when
// refund is set, zeroes the balance. Returns the refunded amount (zero when
// refund is off or the balance was empty).
func (e *Engine) ResetAccount(caller, principal [20]byte, refund bool) (*big.Int, error) {
	if err := e.requireRole(roles.RoleGovernment, caller); err != nil {
		return nil, err
	}
	account, err := e.state.BondAccount(principal)
	if err != nil {
		return nil, fmt.Errorf("bond: load account: %w", err)
	}
	account.normalize()
	refunded := big.NewInt(0)
	if refund && account.Balance.Sign() > 0 {
		refunded = new(big.Int).Set(account.Balance)
		account.Balance = big.NewInt(0)
	}
	account.Locked = false
	if err := e.state.PutBondAccount(principal, account); err != nil {
		return nil, fmt.Errorf("bond: store account: %w", err)
	}
	if refunded.Sign() > 0 {
		e.emitter.Emit(events.BondRefunded{
			Manufacturer: principal,
			Amount:       new(big.Int).Set(refunded),
		})
	}
	return refunded, nil
}
