package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"operator-console/goutils/settings"
)

type mockContractApi struct {
	operatorTokenBalance func(ctx context.Context, operator common.Address, holder common.Address) (*big.Int, error)
	balanceInData        func(ctx context.Context, operator common.Address, holder common.Address) (*big.Int, error)
	undelegate           func(opts *bind.TransactOpts, operator common.Address, operatorTokens *big.Int) (*types.Transaction, error)
	payOutQueue          func(opts *bind.TransactOpts, operator common.Address, maxIterations *big.Int) (*types.Transaction, error)
	stake                func(opts *bind.TransactOpts, operator common.Address, sponsorship common.Address, amountWei *big.Int) (*types.Transaction, error)
	reduceStakeTo        func(opts *bind.TransactOpts, operator common.Address, sponsorship common.Address, targetWei *big.Int) (*types.Transaction, error)
	withdrawEarnings     func(opts *bind.TransactOpts, operator common.Address, sponsorships []common.Address) (*types.Transaction, error)
	tokenBalanceOf       func(ctx context.Context, holder common.Address) (*big.Int, error)
	transferAndCall      func(opts *bind.TransactOpts, to common.Address, amountWei *big.Int, data []byte) (*types.Transaction, error)
	minimumDelegationWei func(ctx context.Context) (*big.Int, error)
}

func (m *mockContractApi) OperatorTokenBalance(ctx context.Context, operator common.Address, holder common.Address) (*big.Int, error) {
	return m.operatorTokenBalance(ctx, operator, holder)
}

func (m *mockContractApi) BalanceInData(ctx context.Context, operator common.Address, holder common.Address) (*big.Int, error) {
	return m.balanceInData(ctx, operator, holder)
}

func (m *mockContractApi) Undelegate(opts *bind.TransactOpts, operator common.Address, operatorTokens *big.Int) (*types.Transaction, error) {
	return m.undelegate(opts, operator, operatorTokens)
}

func (m *mockContractApi) PayOutQueue(opts *bind.TransactOpts, operator common.Address, maxIterations *big.Int) (*types.Transaction, error) {
	return m.payOutQueue(opts, operator, maxIterations)
}

func (m *mockContractApi) Stake(opts *bind.TransactOpts, operator common.Address, sponsorship common.Address, amountWei *big.Int) (*types.Transaction, error) {
	return m.stake(opts, operator, sponsorship, amountWei)
}

func (m *mockContractApi) ReduceStakeTo(opts *bind.TransactOpts, operator common.Address, sponsorship common.Address, targetWei *big.Int) (*types.Transaction, error) {
	return m.reduceStakeTo(opts, operator, sponsorship, targetWei)
}

func (m *mockContractApi) WithdrawEarnings(opts *bind.TransactOpts, operator common.Address, sponsorships []common.Address) (*types.Transaction, error) {
	return m.withdrawEarnings(opts, operator, sponsorships)
}

func (m *mockContractApi) TokenBalanceOf(ctx context.Context, holder common.Address) (*big.Int, error) {
	return m.tokenBalanceOf(ctx, holder)
}

func (m *mockContractApi) TransferAndCall(opts *bind.TransactOpts, to common.Address, amountWei *big.Int, data []byte) (*types.Transaction, error) {
	return m.transferAndCall(opts, to, amountWei, data)
}

func (m *mockContractApi) MinimumDelegationWei(ctx context.Context) (*big.Int, error) {
	return m.minimumDelegationWei(ctx)
}

// generated throwaway key, tests never touch a chain
const testPrivateKeyHex = "fad9c8855b740a0b7ed4c221dbad0f33a83a49cad6b3fe8d5817ac83d38b6a19"

func newTestService(t *testing.T, contractApi *mockContractApi) *Service {
	t.Helper()

	privateKey, err := crypto.HexToECDSA(testPrivateKeyHex)
	if err != nil {
		t.Fatalf("failed to parse test key: %v", err)
	}

	return &Service{
		settingsObj: &settings.SettingsObj{
			Chain: &settings.Chain{ChainID: 137},
		},
		contractApi: contractApi,
		privateKey:  privateKey,
		address:     crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID:     big.NewInt(137),
	}
}

func wei(tokens int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(tokens), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func TestUndelegatePartialSharesMath(t *testing.T) {
	var burned *big.Int

	contractApi := &mockContractApi{
		operatorTokenBalance: func(ctx context.Context, operator common.Address, holder common.Address) (*big.Int, error) {
			return wei(50), nil
		},
		balanceInData: func(ctx context.Context, operator common.Address, holder common.Address) (*big.Int, error) {
			return wei(100), nil
		},
		undelegate: func(opts *bind.TransactOpts, operator common.Address, operatorTokens *big.Int) (*types.Transaction, error) {
			burned = operatorTokens

			return types.NewTx(&types.LegacyTx{}), nil
		},
	}

	service := newTestService(t, contractApi)

	if _, err := service.Undelegate(context.Background(), "0xop", "40"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 40 DATA of a 100 DATA position backed by 50 shares burns 20 shares
	if burned == nil || burned.Cmp(wei(20)) != 0 {
		t.Errorf("expected 20 share tokens burned, got %v", burned)
	}
}

func TestUndelegateFullWithdrawalBurnsAllShares(t *testing.T) {
	var burned *big.Int

	contractApi := &mockContractApi{
		operatorTokenBalance: func(ctx context.Context, operator common.Address, holder common.Address) (*big.Int, error) {
			return big.NewInt(333333333333333333), nil
		},
		balanceInData: func(ctx context.Context, operator common.Address, holder common.Address) (*big.Int, error) {
			return wei(100), nil
		},
		undelegate: func(opts *bind.TransactOpts, operator common.Address, operatorTokens *big.Int) (*types.Transaction, error) {
			burned = operatorTokens

			return types.NewTx(&types.LegacyTx{}), nil
		},
	}

	service := newTestService(t, contractApi)

	// 99.995 of 100 is above the 99.99% threshold
	if _, err := service.Undelegate(context.Background(), "0xop", "99.995"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if burned == nil || burned.Cmp(big.NewInt(333333333333333333)) != 0 {
		t.Errorf("full withdrawal must burn the entire share balance, got %v", burned)
	}
}

func TestUndelegateNothingStaked(t *testing.T) {
	contractApi := &mockContractApi{
		operatorTokenBalance: func(ctx context.Context, operator common.Address, holder common.Address) (*big.Int, error) {
			return big.NewInt(0), nil
		},
		balanceInData: func(ctx context.Context, operator common.Address, holder common.Address) (*big.Int, error) {
			return big.NewInt(0), nil
		},
	}

	service := newTestService(t, contractApi)

	_, err := service.Undelegate(context.Background(), "0xop", "10")
	if !errors.Is(err, ErrNothingStaked) {
		t.Errorf("expected ErrNothingStaked, got %v", err)
	}
}

func TestDelegateBelowMinimum(t *testing.T) {
	contractApi := &mockContractApi{
		minimumDelegationWei: func(ctx context.Context) (*big.Int, error) {
			return wei(5), nil
		},
	}

	service := newTestService(t, contractApi)

	_, err := service.Delegate(context.Background(), "0xop", "2")
	if !errors.Is(err, ErrBelowMinimum) {
		t.Errorf("expected ErrBelowMinimum, got %v", err)
	}
}

func TestDelegateRejectsNonPositiveAmount(t *testing.T) {
	called := false

	contractApi := &mockContractApi{
		minimumDelegationWei: func(ctx context.Context) (*big.Int, error) {
			return wei(1), nil
		},
		tokenBalanceOf: func(ctx context.Context, holder common.Address) (*big.Int, error) {
			return wei(1000), nil
		},
		transferAndCall: func(opts *bind.TransactOpts, to common.Address, amountWei *big.Int, data []byte) (*types.Transaction, error) {
			called = true

			return types.NewTx(&types.LegacyTx{}), nil
		},
	}

	service := newTestService(t, contractApi)

	for _, amount := range []string{"-1", "0", "-0.5"} {
		_, err := service.Delegate(context.Background(), "0xop", amount)
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Delegate(%q): expected ErrInvalidAmount, got %v", amount, err)
		}
	}

	if called {
		t.Error("non-positive amount must never reach the token contract")
	}
}

func TestDelegateInsufficientBalance(t *testing.T) {
	contractApi := &mockContractApi{
		minimumDelegationWei: func(ctx context.Context) (*big.Int, error) {
			return wei(1), nil
		},
		tokenBalanceOf: func(ctx context.Context, holder common.Address) (*big.Int, error) {
			return wei(10), nil
		},
	}

	service := newTestService(t, contractApi)

	_, err := service.Delegate(context.Background(), "0xop", "50")
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestUndelegateRejectsNegativeAmount(t *testing.T) {
	called := false

	// a 200 DATA position backed by 100 share tokens, a negative request
	// would otherwise scale to a negative burn
	contractApi := &mockContractApi{
		operatorTokenBalance: func(ctx context.Context, operator common.Address, holder common.Address) (*big.Int, error) {
			return wei(100), nil
		},
		balanceInData: func(ctx context.Context, operator common.Address, holder common.Address) (*big.Int, error) {
			return wei(200), nil
		},
		undelegate: func(opts *bind.TransactOpts, operator common.Address, operatorTokens *big.Int) (*types.Transaction, error) {
			called = true

			return types.NewTx(&types.LegacyTx{}), nil
		},
	}

	service := newTestService(t, contractApi)

	for _, amount := range []string{"-1", "0"} {
		_, err := service.Undelegate(context.Background(), "0xop", amount)
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Undelegate(%q): expected ErrInvalidAmount, got %v", amount, err)
		}
	}

	if called {
		t.Error("non-positive amount must never reach the operator contract")
	}
}

func TestEditStakeRejectsNegativeTarget(t *testing.T) {
	called := false

	contractApi := &mockContractApi{
		reduceStakeTo: func(opts *bind.TransactOpts, operator common.Address, sponsorship common.Address, targetWei *big.Int) (*types.Transaction, error) {
			called = true

			return types.NewTx(&types.LegacyTx{}), nil
		},
	}

	service := newTestService(t, contractApi)

	_, err := service.EditStake(context.Background(), "0xop", "0xspon", wei(100), "-5")
	if !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}

	if called {
		t.Error("negative target must never reach the sponsorship contract")
	}
}

func TestEditStakeChoosesDirection(t *testing.T) {
	var stakedDelta, reducedTo *big.Int

	contractApi := &mockContractApi{
		stake: func(opts *bind.TransactOpts, operator common.Address, sponsorship common.Address, amountWei *big.Int) (*types.Transaction, error) {
			stakedDelta = amountWei

			return types.NewTx(&types.LegacyTx{}), nil
		},
		reduceStakeTo: func(opts *bind.TransactOpts, operator common.Address, sponsorship common.Address, targetWei *big.Int) (*types.Transaction, error) {
			reducedTo = targetWei

			return types.NewTx(&types.LegacyTx{}), nil
		},
	}

	service := newTestService(t, contractApi)

	if _, err := service.EditStake(context.Background(), "0xop", "0xspon", wei(100), "150"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stakedDelta == nil || stakedDelta.Cmp(wei(50)) != 0 {
		t.Errorf("raising stake to 150 from 100 must stake the 50 delta, got %v", stakedDelta)
	}

	if _, err := service.EditStake(context.Background(), "0xop", "0xspon", wei(100), "60"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reducedTo == nil || reducedTo.Cmp(wei(60)) != 0 {
		t.Errorf("lowering stake must reduce to the absolute target, got %v", reducedTo)
	}
}

type rejectionError struct{}

func (rejectionError) Error() string  { return "user rejected the request" }
func (rejectionError) ErrorCode() int { return 4001 }

func TestFriendlyMessage(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"user rejection", rejectionError{}, msgRejected},
		{"slash revert", errors.New("execution reverted: operator was slashed recently"), msgSlashed},
		{"minimum revert", errors.New("execution reverted: below minimum delegation"), msgBelowMinimum},
		{"capacity revert", errors.New("execution reverted: sponsorship at capacity"), msgOverCapacity},
		{"unmatched revert", errors.New("execution reverted: pool is closed"), "pool is closed"},
		{"unmatched revert keeps casing", errors.New("Execution reverted: Pool DATA-77 is closed"), "Pool DATA-77 is closed"},
		{"no wallet sentinel", ErrNoWallet, msgNoWallet},
		{"nothing staked sentinel", fmt.Errorf("undelegate: %w", ErrNothingStaked), msgNothingStaked},
		{"below minimum sentinel", ErrBelowMinimum, msgBelowMinimum},
		{"invalid amount sentinel", ErrInvalidAmount, msgInvalidAmount},
		{"insufficient balance sentinel", ErrInsufficientBalance, msgInsufficientBalance},
		{"no reason", errors.New("connection refused"), msgGenericFailure},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FriendlyMessage(tc.err); got != tc.want {
				t.Errorf("FriendlyMessage(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}
