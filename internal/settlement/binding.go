package settlement

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/metuDein/aave-flash-arbitrage-bot/internal/chain"
)

// contractABI is the external surface of the deployed settlement contract.
// executeOperation is listed for completeness but is only ever invoked by
// the lending pool mid-loan, never by the bot directly.
const contractABI = `[
  {"type":"function","name":"executeOperation","stateMutability":"nonpayable","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},{"name":"premium","type":"uint256"},{"name":"initiator","type":"address"},{"name":"params","type":"bytes"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"fundContract","stateMutability":"nonpayable","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"withdrawToken","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"}],"outputs":[]},
  {"type":"function","name":"emergencyWithdraw","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"getBalance","stateMutability":"view","inputs":[{"name":"token","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"ADDRESSES_PROVIDER","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"POOL","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"event","name":"ArbitrageExecuted","inputs":[{"name":"asset","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false},{"name":"premium","type":"uint256","indexed":false},{"name":"profit","type":"uint256","indexed":false}],"anonymous":false},
  {"type":"event","name":"ProfitDistributed","inputs":[{"name":"asset","type":"address","indexed":true},{"name":"operator","type":"address","indexed":true},{"name":"profit","type":"uint256","indexed":false}],"anonymous":false},
  {"type":"event","name":"FundsDeposited","inputs":[{"name":"from","type":"address","indexed":true},{"name":"asset","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}],"anonymous":false},
  {"type":"event","name":"TokenWithdrawn","inputs":[{"name":"token","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}],"anonymous":false}
]`

var parsedContractABI = chain.MustParseABI(contractABI)

// ContractABI returns the parsed settlement contract ABI, shared with the
// result interpreter for log decoding.
func ContractABI() abi.ABI {
	return parsedContractABI
}

// Contract is the bound deployed settlement contract.
type Contract struct {
	addr     common.Address
	contract *bind.BoundContract
}

// NewContract binds the settlement contract at addr.
func NewContract(addr common.Address, backend bind.ContractBackend) *Contract {
	return &Contract{
		addr:     addr,
		contract: bind.NewBoundContract(addr, parsedContractABI, backend, backend, backend),
	}
}

// Address returns the contract address.
func (c *Contract) Address() common.Address {
	return c.addr
}

// FundContract deposits working capital. The caller must have approved the
// contract for at least amount beforehand.
func (c *Contract) FundContract(opts *bind.TransactOpts, asset common.Address, amount *big.Int) (*types.Transaction, error) {
	tx, err := c.contract.Transact(opts, "fundContract", asset, amount)
	if err != nil {
		return nil, fmt.Errorf("settlement: fundContract: %w", err)
	}
	return tx, nil
}

// WithdrawToken pulls the contract's full balance of token to the operator.
func (c *Contract) WithdrawToken(opts *bind.TransactOpts, token common.Address) (*types.Transaction, error) {
	tx, err := c.contract.Transact(opts, "withdrawToken", token)
	if err != nil {
		return nil, fmt.Errorf("settlement: withdrawToken: %w", err)
	}
	return tx, nil
}

// EmergencyWithdraw pulls amount of token to the operator.
func (c *Contract) EmergencyWithdraw(opts *bind.TransactOpts, token common.Address, amount *big.Int) (*types.Transaction, error) {
	tx, err := c.contract.Transact(opts, "emergencyWithdraw", token, amount)
	if err != nil {
		return nil, fmt.Errorf("settlement: emergencyWithdraw: %w", err)
	}
	return tx, nil
}

// GetBalance reads the contract's balance of token.
func (c *Contract) GetBalance(ctx context.Context, token common.Address) (*big.Int, error) {
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getBalance", token)
	if err != nil {
		return nil, fmt.Errorf("settlement: getBalance: %w", err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// Owner reads the configured operator address.
func (c *Contract) Owner(ctx context.Context) (common.Address, error) {
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "owner")
	if err != nil {
		return common.Address{}, fmt.Errorf("settlement: owner: %w", err)
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// Provider reads the configured addresses-provider address.
func (c *Contract) Provider(ctx context.Context) (common.Address, error) {
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "ADDRESSES_PROVIDER")
	if err != nil {
		return common.Address{}, fmt.Errorf("settlement: ADDRESSES_PROVIDER: %w", err)
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// Pool reads the configured lending-pool address.
func (c *Contract) Pool(ctx context.Context) (common.Address, error) {
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "POOL")
	if err != nil {
		return common.Address{}, fmt.Errorf("settlement: POOL: %w", err)
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// ArbitrageExecuted is the settlement contract's per-session summary event.
type ArbitrageExecuted struct {
	Asset   common.Address
	Amount  *big.Int
	Premium *big.Int
	Profit  *big.Int
}

// ParseArbitrageExecuted decodes an ArbitrageExecuted event from a receipt
// log, or returns false when the log is a different event.
func ParseArbitrageExecuted(log types.Log) (ArbitrageExecuted, bool, error) {
	event := parsedContractABI.Events["ArbitrageExecuted"]
	if len(log.Topics) == 0 || log.Topics[0] != event.ID {
		return ArbitrageExecuted{}, false, nil
	}

	var out ArbitrageExecuted
	if err := parsedContractABI.UnpackIntoInterface(&out, "ArbitrageExecuted", log.Data); err != nil {
		return ArbitrageExecuted{}, false, fmt.Errorf("settlement: unpack ArbitrageExecuted: %w", err)
	}
	// Indexed fields live in the topics, not the data payload.
	if len(log.Topics) > 1 {
		out.Asset = common.BytesToAddress(log.Topics[1].Bytes())
	}
	return out, true, nil
}
