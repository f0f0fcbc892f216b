// Package loan submits flash-loan requests to the Aave V3 pool. The gateway
// is write-only: it packs the flashLoanSimple call, signs it, and waits for
// inclusion. Everything after the borrow is the contract's business.
package loan

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/metuDein/aave-flash-arbitrage-bot/internal/chain"
	"github.com/metuDein/aave-flash-arbitrage-bot/internal/domain"
)

const poolABI = `[
  {"type":"function","name":"flashLoanSimple","stateMutability":"nonpayable","inputs":[{"name":"receiverAddress","type":"address"},{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},{"name":"params","type":"bytes"},{"name":"referralCode","type":"uint16"}],"outputs":[]},
  {"type":"function","name":"FLASHLOAN_PREMIUM_TOTAL","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint128"}]}
]`

var parsedPoolABI = chain.MustParseABI(poolABI)

// Gateway submits flash loans against a single pool on behalf of a single
// receiver contract.
type Gateway struct {
	pool     *bind.BoundContract
	receiver common.Address
	client   *chain.Client
	signer   *chain.Signer
	deadline time.Duration
	logger   *slog.Logger
}

// NewGateway binds the pool at poolAddr. receiver is the settlement contract
// the pool will call back into; deadline bounds how long Borrow waits for
// inclusion.
func NewGateway(poolAddr, receiver common.Address, client *chain.Client, signer *chain.Signer, deadline time.Duration, logger *slog.Logger) *Gateway {
	backend := client.Backend()
	return &Gateway{
		pool:     bind.NewBoundContract(poolAddr, parsedPoolABI, backend, backend, backend),
		receiver: receiver,
		client:   client,
		signer:   signer,
		deadline: deadline,
		logger:   logger.With(slog.String("component", "loan")),
	}
}

// Receiver returns the settlement contract the pool calls back into.
func (g *Gateway) Receiver() common.Address { return g.receiver }

// Borrow submits flashLoanSimple for the request and blocks until the
// transaction is mined or the inclusion deadline passes. The receipt is
// returned even when the transaction reverted; callers inspect the status.
func (g *Gateway) Borrow(ctx context.Context, req domain.LoanRequest) (*types.Receipt, error) {
	opts, err := g.signer.TransactOpts(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := g.pool.Transact(opts, "flashLoanSimple",
		g.receiver, req.Asset, req.Amount, req.Params, req.ReferralTag)
	if err != nil {
		return nil, fmt.Errorf("loan: submit flash loan: %w", err)
	}

	g.logger.Info("flash loan submitted",
		slog.String("tx", tx.Hash().Hex()),
		slog.String("asset", req.Asset.Hex()),
		slog.String("amount", req.Amount.String()),
	)

	receipt, err := g.client.WaitMined(ctx, tx, g.deadline)
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// PremiumBps reads the pool's current flash-loan premium in basis points.
// Used at startup to confirm the configured fee assumption still holds.
func (g *Gateway) PremiumBps(ctx context.Context) (*big.Int, error) {
	var out []interface{}
	if err := g.pool.Call(&bind.CallOpts{Context: ctx}, &out, "FLASHLOAN_PREMIUM_TOTAL"); err != nil {
		return nil, fmt.Errorf("loan: read premium: %w", err)
	}
	premium, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("loan: read premium: unexpected type %T", out[0])
	}
	return premium, nil
}
