// Package funding keeps the settlement contract capitalized. The guard runs
// at startup and before each trade: if the contract's buffer of the borrowed
// asset has fallen under the floor it tops it up from the operator wallet,
// and refuses to proceed when the wallet itself cannot cover the top-up.
package funding

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/metuDein/aave-flash-arbitrage-bot/internal/domain"
)

// Token is the ERC-20 surface the guard needs.
type Token interface {
	Address() common.Address
	BalanceOf(ctx context.Context, holder common.Address) (*big.Int, error)
	Approve(opts *bind.TransactOpts, spender common.Address, amount *big.Int) (*types.Transaction, error)
}

// Vault is the settlement contract surface the guard needs.
type Vault interface {
	Address() common.Address
	GetBalance(ctx context.Context, token common.Address) (*big.Int, error)
	FundContract(opts *bind.TransactOpts, asset common.Address, amount *big.Int) (*types.Transaction, error)
}

// Wallet signs transactions and identifies the operator.
type Wallet interface {
	Address() common.Address
	TransactOpts(ctx context.Context) (*bind.TransactOpts, error)
}

// Waiter blocks until a transaction is included.
type Waiter interface {
	WaitMined(ctx context.Context, tx *types.Transaction, deadline time.Duration) (*types.Receipt, error)
}

// Config sets the capital policy. MinBalance is the floor under which the
// guard acts; TopUp is the amount moved when it does.
type Config struct {
	MinBalance *big.Int
	TopUp      *big.Int
	TxDeadline time.Duration
}

// Guard enforces the capital policy for one token.
type Guard struct {
	cfg    Config
	token  Token
	vault  Vault
	wallet Wallet
	waiter Waiter
	logger *slog.Logger
}

// NewGuard constructs a Guard.
func NewGuard(cfg Config, token Token, vault Vault, wallet Wallet, waiter Waiter, logger *slog.Logger) *Guard {
	return &Guard{
		cfg:    cfg,
		token:  token,
		vault:  vault,
		wallet: wallet,
		waiter: waiter,
		logger: logger.With(slog.String("component", "funding")),
	}
}

// EnsureFunded checks the contract's token buffer and tops it up from the
// operator wallet when it is under the floor. A buffer already at or above
// the floor is a no-op. Returns domain.ErrInsufficientCapital when the
// wallet cannot cover the top-up.
func (g *Guard) EnsureFunded(ctx context.Context) error {
	balance, err := g.vault.GetBalance(ctx, g.token.Address())
	if err != nil {
		return fmt.Errorf("funding: contract balance: %w", err)
	}
	if balance.Cmp(g.cfg.MinBalance) >= 0 {
		g.logger.Debug("contract funded", slog.String("balance", balance.String()))
		return nil
	}

	walletBal, err := g.token.BalanceOf(ctx, g.wallet.Address())
	if err != nil {
		return fmt.Errorf("funding: wallet balance: %w", err)
	}
	if walletBal.Cmp(g.cfg.TopUp) < 0 {
		return fmt.Errorf("funding: wallet holds %s, top-up needs %s: %w",
			walletBal, g.cfg.TopUp, domain.ErrInsufficientCapital)
	}

	g.logger.Info("topping up contract",
		slog.String("balance", balance.String()),
		slog.String("floor", g.cfg.MinBalance.String()),
		slog.String("amount", g.cfg.TopUp.String()),
	)

	if err := g.submit(ctx, "approve", func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return g.token.Approve(opts, g.vault.Address(), g.cfg.TopUp)
	}); err != nil {
		return err
	}
	if err := g.submit(ctx, "fund", func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return g.vault.FundContract(opts, g.token.Address(), g.cfg.TopUp)
	}); err != nil {
		return err
	}

	funded, err := g.vault.GetBalance(ctx, g.token.Address())
	if err != nil {
		return fmt.Errorf("funding: confirm balance: %w", err)
	}
	if funded.Cmp(g.cfg.MinBalance) < 0 {
		return fmt.Errorf("funding: balance %s still under floor %s after top-up", funded, g.cfg.MinBalance)
	}

	g.logger.Info("top-up complete", slog.String("balance", funded.String()))
	return nil
}

func (g *Guard) submit(ctx context.Context, step string, send func(*bind.TransactOpts) (*types.Transaction, error)) error {
	opts, err := g.wallet.TransactOpts(ctx)
	if err != nil {
		return fmt.Errorf("funding: %s: %w", step, err)
	}
	tx, err := send(opts)
	if err != nil {
		return fmt.Errorf("funding: %s: %w", step, err)
	}
	receipt, err := g.waiter.WaitMined(ctx, tx, g.cfg.TxDeadline)
	if err != nil {
		return fmt.Errorf("funding: %s: %w", step, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("funding: %s reverted in tx %s", step, tx.Hash().Hex())
	}
	return nil
}
