package settlement

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SimLedger is an in-memory token ledger with EVM-style snapshot/revert.
// It backs the orchestrator's pre-flight simulation and the settlement
// tests. Not safe for concurrent use; the settlement path is sequential.
type SimLedger struct {
	balances   map[common.Address]map[common.Address]*big.Int // asset -> holder -> balance
	allowances map[allowanceKey]*big.Int
	snapshots  []simState
}

type allowanceKey struct {
	asset   common.Address
	owner   common.Address
	spender common.Address
}

type simState struct {
	balances   map[common.Address]map[common.Address]*big.Int
	allowances map[allowanceKey]*big.Int
}

// NewSimLedger creates an empty ledger.
func NewSimLedger() *SimLedger {
	return &SimLedger{
		balances:   make(map[common.Address]map[common.Address]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
	}
}

// SetBalance seeds holder's balance of asset.
func (l *SimLedger) SetBalance(asset, holder common.Address, amount *big.Int) {
	holders, ok := l.balances[asset]
	if !ok {
		holders = make(map[common.Address]*big.Int)
		l.balances[asset] = holders
	}
	holders[holder] = new(big.Int).Set(amount)
}

// BalanceOf returns holder's balance of asset (zero when unseeded).
func (l *SimLedger) BalanceOf(asset, holder common.Address) *big.Int {
	if holders, ok := l.balances[asset]; ok {
		if bal, ok := holders[holder]; ok {
			return new(big.Int).Set(bal)
		}
	}
	return new(big.Int)
}

// Transfer moves amount of asset from one holder to another. It fails when
// the sender's balance is insufficient, like an ERC-20 transfer would.
func (l *SimLedger) Transfer(asset, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("sim ledger: invalid transfer amount")
	}
	fromBal := l.BalanceOf(asset, from)
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("sim ledger: transfer %s exceeds balance %s", amount, fromBal)
	}
	l.SetBalance(asset, from, new(big.Int).Sub(fromBal, amount))
	l.SetBalance(asset, to, new(big.Int).Add(l.BalanceOf(asset, to), amount))
	return nil
}

// Approve records an allowance grant.
func (l *SimLedger) Approve(asset, owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("sim ledger: invalid approval amount")
	}
	l.allowances[allowanceKey{asset, owner, spender}] = new(big.Int).Set(amount)
	return nil
}

// Allowance returns the recorded allowance (zero when none).
func (l *SimLedger) Allowance(asset, owner, spender common.Address) *big.Int {
	if a, ok := l.allowances[allowanceKey{asset, owner, spender}]; ok {
		return new(big.Int).Set(a)
	}
	return new(big.Int)
}

// Snapshot captures the full ledger state and returns an id for RevertTo.
func (l *SimLedger) Snapshot() int {
	balances := make(map[common.Address]map[common.Address]*big.Int, len(l.balances))
	for asset, holders := range l.balances {
		copied := make(map[common.Address]*big.Int, len(holders))
		for holder, bal := range holders {
			copied[holder] = new(big.Int).Set(bal)
		}
		balances[asset] = copied
	}
	allowances := make(map[allowanceKey]*big.Int, len(l.allowances))
	for k, v := range l.allowances {
		allowances[k] = new(big.Int).Set(v)
	}
	l.snapshots = append(l.snapshots, simState{balances: balances, allowances: allowances})
	return len(l.snapshots) - 1
}

// RevertTo restores the state captured by Snapshot and discards any
// snapshots taken after it. Out-of-range ids are ignored.
func (l *SimLedger) RevertTo(id int) {
	if id < 0 || id >= len(l.snapshots) {
		return
	}
	state := l.snapshots[id]
	l.balances = state.balances
	l.allowances = state.allowances
	l.snapshots = l.snapshots[:id]
}

// CallFunc adapts a function to the CallExecutor interface, letting tests
// and the pre-flight simulation script trade-instruction effects.
type CallFunc func(target common.Address, payload []byte) error

// Call invokes the wrapped function.
func (f CallFunc) Call(target common.Address, payload []byte) error {
	return f(target, payload)
}
