// Package chain wraps the Ethereum RPC client with the small surface the bot
// needs: gas price reads, balance checks, and blocking transaction waits
// with an explicit deadline.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client wraps an ethclient.Client together with the verified chain ID.
type Client struct {
	eth     *ethclient.Client
	chainID *big.Int
	logger  *slog.Logger
}

// Dial connects to the RPC endpoint and verifies that the remote chain ID
// matches wantChainID. A mismatch is a configuration error, not something to
// retry.
func Dial(ctx context.Context, rpcURL string, wantChainID int64, logger *slog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rpcURL, err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain: chain id: %w", err)
	}
	if chainID.Int64() != wantChainID {
		eth.Close()
		return nil, fmt.Errorf("chain: endpoint serves chain %d, config expects %d", chainID.Int64(), wantChainID)
	}

	return &Client{
		eth:     eth,
		chainID: chainID,
		logger:  logger.With(slog.String("component", "chain")),
	}, nil
}

// ChainID returns the verified chain ID.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Backend exposes the underlying client for contract bindings.
func (c *Client) Backend() *ethclient.Client {
	return c.eth
}

// SuggestGasPrice returns the node's suggested gas price in wei.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain: suggest gas price: %w", err)
	}
	return price, nil
}

// BalanceAt returns the gas-token balance of addr at the latest block.
func (c *Client) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	bal, err := c.eth.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: balance of %s: %w", addr.Hex(), err)
	}
	return bal, nil
}

// WaitMined blocks until the transaction is included or the deadline
// expires. The deadline is the bot's own policy; the underlying RPC call has
// no inclusion timeout of its own. A receipt with a failed status is
// returned without error so the caller can interpret the revert.
func (c *Client) WaitMined(ctx context.Context, tx *types.Transaction, deadline time.Duration) (*types.Receipt, error) {
	waitCtx := ctx
	if deadline > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	c.logger.Debug("waiting for inclusion", slog.String("tx", tx.Hash().Hex()))

	receipt, err := bind.WaitMined(waitCtx, c.eth, tx)
	if err != nil {
		return nil, fmt.Errorf("chain: wait mined %s: %w", tx.Hash().Hex(), err)
	}
	return receipt, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}
