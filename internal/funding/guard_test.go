package funding

import (
	"context"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metuDein/aave-flash-arbitrage-bot/internal/domain"
)

var (
	tokenAddr    = common.HexToAddress("0x01")
	vaultAddr    = common.HexToAddress("0x02")
	operatorAddr = common.HexToAddress("0x03")
)

func dummyTx() *types.Transaction {
	return types.NewTx(&types.LegacyTx{Nonce: 0, Gas: 21000, GasPrice: big.NewInt(1), To: &vaultAddr})
}

type fakeToken struct {
	walletBalance *big.Int
	approved      *big.Int
	approveCalls  int
}

func (f *fakeToken) Address() common.Address { return tokenAddr }

func (f *fakeToken) BalanceOf(_ context.Context, _ common.Address) (*big.Int, error) {
	return new(big.Int).Set(f.walletBalance), nil
}

func (f *fakeToken) Approve(_ *bind.TransactOpts, _ common.Address, amount *big.Int) (*types.Transaction, error) {
	f.approveCalls++
	f.approved = new(big.Int).Set(amount)
	return dummyTx(), nil
}

type fakeVault struct {
	balance   *big.Int
	fundCalls int
}

func (f *fakeVault) Address() common.Address { return vaultAddr }

func (f *fakeVault) GetBalance(_ context.Context, _ common.Address) (*big.Int, error) {
	return new(big.Int).Set(f.balance), nil
}

func (f *fakeVault) FundContract(_ *bind.TransactOpts, _ common.Address, amount *big.Int) (*types.Transaction, error) {
	f.fundCalls++
	f.balance.Add(f.balance, amount)
	return dummyTx(), nil
}

type fakeWallet struct{}

func (fakeWallet) Address() common.Address { return operatorAddr }

func (fakeWallet) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	return &bind.TransactOpts{From: operatorAddr, Context: ctx}, nil
}

type fakeWaiter struct {
	status uint64
}

func (f fakeWaiter) WaitMined(_ context.Context, tx *types.Transaction, _ time.Duration) (*types.Receipt, error) {
	return &types.Receipt{Status: f.status, TxHash: tx.Hash()}, nil
}

func newTestGuard(token *fakeToken, vault *fakeVault, status uint64) *Guard {
	return NewGuard(Config{
		MinBalance: big.NewInt(100),
		TopUp:      big.NewInt(250),
		TxDeadline: time.Minute,
	}, token, vault, fakeWallet{}, fakeWaiter{status: status}, slog.New(slog.DiscardHandler))
}

func TestEnsureFundedNoopWhenAboveFloor(t *testing.T) {
	token := &fakeToken{walletBalance: big.NewInt(0)}
	vault := &fakeVault{balance: big.NewInt(100)}
	g := newTestGuard(token, vault, types.ReceiptStatusSuccessful)

	require.NoError(t, g.EnsureFunded(context.Background()))
	assert.Zero(t, token.approveCalls)
	assert.Zero(t, vault.fundCalls)
}

func TestEnsureFundedTopsUp(t *testing.T) {
	token := &fakeToken{walletBalance: big.NewInt(1000)}
	vault := &fakeVault{balance: big.NewInt(10)}
	g := newTestGuard(token, vault, types.ReceiptStatusSuccessful)

	require.NoError(t, g.EnsureFunded(context.Background()))
	assert.Equal(t, 1, token.approveCalls)
	assert.Equal(t, 1, vault.fundCalls)
	assert.Equal(t, big.NewInt(250), token.approved)
	assert.Equal(t, big.NewInt(260), vault.balance)
}

func TestEnsureFundedInsufficientCapital(t *testing.T) {
	token := &fakeToken{walletBalance: big.NewInt(249)}
	vault := &fakeVault{balance: big.NewInt(10)}
	g := newTestGuard(token, vault, types.ReceiptStatusSuccessful)

	err := g.EnsureFunded(context.Background())
	require.ErrorIs(t, err, domain.ErrInsufficientCapital)
	assert.Zero(t, token.approveCalls)
	assert.Zero(t, vault.fundCalls)
}

func TestEnsureFundedRevertedApprove(t *testing.T) {
	token := &fakeToken{walletBalance: big.NewInt(1000)}
	vault := &fakeVault{balance: big.NewInt(10)}
	g := newTestGuard(token, vault, types.ReceiptStatusFailed)

	err := g.EnsureFunded(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reverted")
	assert.Zero(t, vault.fundCalls)
}
