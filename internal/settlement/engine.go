package settlement

import (
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/metuDein/aave-flash-arbitrage-bot/internal/domain"
)

// Ledger is the token-balance view the settlement state machine runs
// against. On chain this is the ERC-20 universe; off chain the simulated
// ledger implements the same surface.
type Ledger interface {
	BalanceOf(asset, holder common.Address) *big.Int
	Transfer(asset, from, to common.Address, amount *big.Int) error
	Approve(asset, owner, spender common.Address, amount *big.Int) error
}

// Snapshotter is implemented by ledgers that can roll back, mirroring the
// EVM's transaction-level revert.
type Snapshotter interface {
	Snapshot() int
	RevertTo(id int)
}

// CallExecutor invokes one encoded trade instruction against its target. A
// returned error means the instruction did not succeed.
type CallExecutor interface {
	Call(target common.Address, payload []byte) error
}

// Session is one flash-loan callback invocation. It exists only for the
// duration of a single Settle call.
type Session struct {
	Asset     common.Address
	Amount    *big.Int
	Premium   *big.Int
	Initiator common.Address
	Caller    common.Address
	Params    []byte
}

// Engine is the settlement state machine. The four addresses are set once
// at construction and never change, mirroring the contract's immutable
// configuration; the only mutable state between sessions is the token
// balances held in the ledger.
type Engine struct {
	self     common.Address // the settlement contract's own address
	operator common.Address
	pool     common.Address
	provider common.Address

	ledger Ledger
	exec   CallExecutor
	logger *slog.Logger
}

// NewEngine creates an Engine with its immutable configuration.
func NewEngine(self, operator, pool, provider common.Address, ledger Ledger, exec CallExecutor, logger *slog.Logger) *Engine {
	return &Engine{
		self:     self,
		operator: operator,
		pool:     pool,
		provider: provider,
		ledger:   ledger,
		exec:     exec,
		logger:   logger.With(slog.String("component", "settlement")),
	}
}

// Operator returns the configured operator address.
func (e *Engine) Operator() common.Address { return e.operator }

// Pool returns the configured lending-pool address.
func (e *Engine) Pool() common.Address { return e.pool }

// Provider returns the configured addresses-provider address.
func (e *Engine) Provider() common.Address { return e.provider }

// Balance returns the engine's current holding of asset.
func (e *Engine) Balance(asset common.Address) *big.Int {
	return e.ledger.BalanceOf(asset, e.self)
}

// Settle runs the six-step callback for one session and returns the surplus
// forwarded to the operator (zero when the surplus stayed in the contract).
//
// Settle itself performs no rollback: any error means the caller must treat
// every balance mutation as void, which is exactly what the chain does when
// the transaction reverts. Use SettleAtomic against a snapshotting ledger to
// get the same guarantee off chain.
func (e *Engine) Settle(s Session) (*big.Int, error) {
	// AUTHORIZE: only the lending pool may deliver the callback, and only
	// sessions the operator initiated are accepted. Checked before any funds
	// move.
	if s.Caller != e.pool {
		return nil, fmt.Errorf("settlement: caller %s is not the pool: %w", s.Caller.Hex(), domain.ErrUnauthorized)
	}
	if s.Initiator != e.operator {
		return nil, fmt.Errorf("settlement: initiator %s is not the operator: %w", s.Initiator.Hex(), domain.ErrUnauthorized)
	}

	// DECODE
	ins, err := DecodeInstructions(s.Params)
	if err != nil {
		return nil, err
	}

	// EXECUTE_TRADES: strictly in order; later trades may consume balances
	// produced by earlier ones.
	for i, target := range ins.Targets {
		if err := e.exec.Call(target, ins.Payloads[i]); err != nil {
			return nil, fmt.Errorf("settlement: instruction %d to %s: %w: %v", i, target.Hex(), domain.ErrSwapFailed, err)
		}
	}

	// VERIFY_SOLVENCY
	debt := new(big.Int).Add(s.Amount, premiumOrZero(s.Premium))
	finalBalance := e.ledger.BalanceOf(s.Asset, e.self)
	if finalBalance.Cmp(debt) < 0 {
		return nil, fmt.Errorf("settlement: balance %s < debt %s: %w", finalBalance, debt, domain.ErrInsufficientRepayment)
	}

	// REPAY: grant the pool allowance to pull principal plus premium.
	if err := e.ledger.Approve(s.Asset, e.self, e.pool, debt); err != nil {
		return nil, fmt.Errorf("settlement: approve repayment: %w", err)
	}

	// DISTRIBUTE: surplus below the requested minimum stays in the contract
	// for future cycles instead of being paid out as dust.
	surplus := new(big.Int).Sub(finalBalance, debt)
	if surplus.Cmp(ins.MinProfit) < 0 {
		e.logger.Debug("surplus below distribution threshold, retained",
			slog.String("surplus", surplus.String()),
			slog.String("min_profit", ins.MinProfit.String()),
		)
		return new(big.Int), nil
	}
	if err := e.ledger.Transfer(s.Asset, e.self, e.operator, surplus); err != nil {
		return nil, fmt.Errorf("settlement: distribute surplus: %w", err)
	}

	e.logger.Info("settlement session complete",
		slog.String("asset", s.Asset.Hex()),
		slog.String("surplus", surplus.String()),
	)
	return surplus, nil
}

// SettleAtomic runs Settle and, when the ledger supports snapshots, rolls
// every balance mutation back on failure. This is the all-or-nothing
// behavior the chain provides for free; the simulated ledger needs it done
// explicitly.
func (e *Engine) SettleAtomic(s Session) (*big.Int, error) {
	snap, ok := e.ledger.(Snapshotter)
	if !ok {
		return e.Settle(s)
	}

	id := snap.Snapshot()
	surplus, err := e.Settle(s)
	if err != nil {
		snap.RevertTo(id)
		return nil, err
	}
	return surplus, nil
}

// Fund deposits working capital into the contract. Operator only.
func (e *Engine) Fund(caller, asset common.Address, amount *big.Int) error {
	if caller != e.operator {
		return fmt.Errorf("settlement: fund by %s: %w", caller.Hex(), domain.ErrUnauthorized)
	}
	if err := e.ledger.Transfer(asset, caller, e.self, amount); err != nil {
		return fmt.Errorf("settlement: fund: %w", err)
	}
	return nil
}

// WithdrawToken sends the contract's full balance of asset to the operator.
// Operator only.
func (e *Engine) WithdrawToken(caller, asset common.Address) (*big.Int, error) {
	if caller != e.operator {
		return nil, fmt.Errorf("settlement: withdraw by %s: %w", caller.Hex(), domain.ErrUnauthorized)
	}
	balance := e.ledger.BalanceOf(asset, e.self)
	if balance.Sign() == 0 {
		return new(big.Int), nil
	}
	if err := e.ledger.Transfer(asset, e.self, e.operator, balance); err != nil {
		return nil, fmt.Errorf("settlement: withdraw: %w", err)
	}
	return balance, nil
}

// EmergencyWithdraw sends amount of asset to the operator regardless of any
// other state. Operator only.
func (e *Engine) EmergencyWithdraw(caller, asset common.Address, amount *big.Int) error {
	if caller != e.operator {
		return fmt.Errorf("settlement: emergency withdraw by %s: %w", caller.Hex(), domain.ErrUnauthorized)
	}
	if err := e.ledger.Transfer(asset, e.self, e.operator, amount); err != nil {
		return fmt.Errorf("settlement: emergency withdraw: %w", err)
	}
	return nil
}

func premiumOrZero(p *big.Int) *big.Int {
	if p == nil {
		return new(big.Int)
	}
	return p
}
