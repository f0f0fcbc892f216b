package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// erc20ABI is the minimal ERC-20 fragment the bot needs: balance reads for
// the funding guard, approve/transfer for capital top-ups.
const erc20ABI = `[
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]}
]`

// MustParseABI parses an ABI JSON fragment, panicking on failure. All inputs
// are compile-time constants.
func MustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("chain: parse abi: %v", err))
	}
	return parsed
}

var parsedERC20ABI = MustParseABI(erc20ABI)

// ERC20 is a bound ERC-20 token contract.
type ERC20 struct {
	addr     common.Address
	contract *bind.BoundContract
}

// NewERC20 binds the token at addr to the given backend.
func NewERC20(addr common.Address, backend bind.ContractBackend) *ERC20 {
	return &ERC20{
		addr:     addr,
		contract: bind.NewBoundContract(addr, parsedERC20ABI, backend, backend, backend),
	}
}

// Address returns the token contract address.
func (t *ERC20) Address() common.Address {
	return t.addr
}

// BalanceOf returns the token balance of holder.
func (t *ERC20) BalanceOf(ctx context.Context, holder common.Address) (*big.Int, error) {
	var out []interface{}
	err := t.contract.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", holder)
	if err != nil {
		return nil, fmt.Errorf("chain: erc20 balanceOf %s: %w", holder.Hex(), err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// Allowance returns the spend allowance owner has granted to spender.
func (t *ERC20) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	var out []interface{}
	err := t.contract.Call(&bind.CallOpts{Context: ctx}, &out, "allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("chain: erc20 allowance: %w", err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// Approve grants spender an allowance of amount.
func (t *ERC20) Approve(opts *bind.TransactOpts, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	tx, err := t.contract.Transact(opts, "approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("chain: erc20 approve: %w", err)
	}
	return tx, nil
}

// Transfer moves amount to the given address.
func (t *ERC20) Transfer(opts *bind.TransactOpts, to common.Address, amount *big.Int) (*types.Transaction, error) {
	tx, err := t.contract.Transact(opts, "transfer", to, amount)
	if err != nil {
		return nil, fmt.Errorf("chain: erc20 transfer: %w", err)
	}
	return tx, nil
}

// Decimals returns the token's decimal count.
func (t *ERC20) Decimals(ctx context.Context) (uint8, error) {
	var out []interface{}
	err := t.contract.Call(&bind.CallOpts{Context: ctx}, &out, "decimals")
	if err != nil {
		return 0, fmt.Errorf("chain: erc20 decimals: %w", err)
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

// Symbol returns the token's symbol.
func (t *ERC20) Symbol(ctx context.Context) (string, error) {
	var out []interface{}
	err := t.contract.Call(&bind.CallOpts{Context: ctx}, &out, "symbol")
	if err != nil {
		return "", fmt.Errorf("chain: erc20 symbol: %w", err)
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}
