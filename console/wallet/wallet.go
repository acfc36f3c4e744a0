// Package wallet submits the console's state-changing operations and reads
// the connected account's positions. All amount math runs on wei integers,
// pool-share conversion uses live contract reads so rounding always matches
// the chain.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/remeh/sizedwaitgroup"
	log "github.com/sirupsen/logrus"
	"github.com/swagftw/gi"

	"operator-console/caching"
	"operator-console/goutils/ethclient"
	"operator-console/goutils/settings"
	"operator-console/goutils/smartcontract"
	"operator-console/goutils/unitconv"
)

var (
	ErrNoWallet            = errors.New("no wallet key configured")
	ErrNothingStaked       = errors.New("nothing staked with this operator")
	ErrBelowMinimum        = errors.New("amount below minimum delegation")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("amount exceeds token balance")
)

const balanceFetchParallelism = 4

// payOutQueueIterations bounds gas use on queue processing.
var payOutQueueIterations = big.NewInt(10)

type Service struct {
	settingsObj *settings.SettingsObj
	contractApi smartcontract.Service
	ethService  ethclient.Service
	memCache    caching.MemCache

	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
}

func InitService() *Service {
	settingsObj, err := gi.Invoke[*settings.SettingsObj]()
	if err != nil {
		log.WithError(err).Fatal("failed to invoke settings object")
	}

	contractApi, err := gi.Invoke[*smartcontract.ContractApi]()
	if err != nil {
		log.WithError(err).Fatal("failed to invoke contract api")
	}

	ethService, err := gi.Invoke[*ethclient.Client]()
	if err != nil {
		log.WithError(err).Fatal("failed to invoke eth client")
	}

	memCache, err := gi.Invoke[*caching.LRUCache]()
	if err != nil {
		log.WithError(err).Fatal("failed to invoke lru cache")
	}

	service := &Service{
		settingsObj: settingsObj,
		contractApi: contractApi,
		ethService:  ethService,
		memCache:    memCache,
	}

	if key := service.settingsObj.Chain.WalletPrivateKey; key != "" {
		privateKey, err := crypto.HexToECDSA(key)
		if err != nil {
			log.WithError(err).Fatal("invalid wallet private key")
		}

		service.privateKey = privateKey
		service.address = crypto.PubkeyToAddress(privateKey.PublicKey)
	}

	service.chainID = big.NewInt(service.settingsObj.Chain.ChainID)

	if err := gi.Inject(service); err != nil {
		log.WithError(err).Fatal("failed to inject wallet service")
	}

	return service
}

// Address returns the connected account, the zero address in read-only mode.
func (s *Service) Address() common.Address {
	return s.address
}

func (s *Service) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if s.privateKey == nil {
		return nil, ErrNoWallet
	}

	opts, err := bind.NewKeyedTransactorWithChainID(s.privateKey, s.chainID)
	if err != nil {
		log.WithError(err).Error("failed to build transactor")

		return nil, err
	}

	opts.Context = ctx

	return opts, nil
}

// Delegate sends governance tokens to the operator contract, which mints
// pool shares for the sender. The network minimum and the sender's token
// balance are checked upfront so the user gets a targeted message instead of
// a revert.
func (s *Service) Delegate(ctx context.Context, operatorID string, amount string) (string, error) {
	amountWei, err := unitconv.ParseDisplay(amount)
	if err != nil || amountWei.Sign() <= 0 {
		return "", ErrInvalidAmount
	}

	minimum, err := s.contractApi.MinimumDelegationWei(ctx)
	if err == nil && minimum != nil && amountWei.Cmp(minimum) < 0 {
		return "", ErrBelowMinimum
	}

	opts, err := s.transactOpts(ctx)
	if err != nil {
		return "", err
	}

	balance, err := s.TokenBalance(ctx)
	if err != nil {
		return "", err
	}

	if balance.Cmp(amountWei) < 0 {
		return "", ErrInsufficientBalance
	}

	tx, err := s.contractApi.TransferAndCall(opts, common.HexToAddress(operatorID), amountWei, nil)
	if err != nil {
		log.WithError(err).Error("delegate transaction failed")

		return "", err
	}

	log.WithField("tx", tx.Hash().Hex()).Info("delegation submitted")

	return tx.Hash().Hex(), nil
}

// Undelegate requests withdrawal of a governance-token amount. The operator
// contract burns pool shares, so the display amount is converted to shares
// via live balance reads. A request within 0.01% of the full position burns
// every share, which sidesteps rounding dust on full exits.
func (s *Service) Undelegate(ctx context.Context, operatorID string, amount string) (string, error) {
	amountDataWei, err := unitconv.ParseDisplay(amount)
	if err != nil || amountDataWei.Sign() <= 0 {
		return "", ErrInvalidAmount
	}

	operator := common.HexToAddress(operatorID)

	userTokens, err := s.contractApi.OperatorTokenBalance(ctx, operator, s.address)
	if err != nil {
		return "", err
	}

	userData, err := s.contractApi.BalanceInData(ctx, operator, s.address)
	if err != nil {
		return "", err
	}

	if userData.Sign() == 0 || userTokens.Sign() == 0 {
		return "", ErrNothingStaked
	}

	fullWithdrawalThreshold := new(big.Int).Mul(userData, big.NewInt(9999))
	fullWithdrawalThreshold.Quo(fullWithdrawalThreshold, big.NewInt(10000))

	var tokensToBurn *big.Int

	if amountDataWei.Cmp(fullWithdrawalThreshold) >= 0 {
		tokensToBurn = new(big.Int).Set(userTokens)
	} else {
		tokensToBurn = new(big.Int).Mul(amountDataWei, userTokens)
		tokensToBurn.Quo(tokensToBurn, userData)
	}

	opts, err := s.transactOpts(ctx)
	if err != nil {
		return "", err
	}

	tx, err := s.contractApi.Undelegate(opts, operator, tokensToBurn)
	if err != nil {
		log.WithError(err).Error("undelegate transaction failed")

		return "", err
	}

	log.WithField("tx", tx.Hash().Hex()).Info("undelegation submitted")

	return tx.Hash().Hex(), nil
}

// EditStake moves an operator's stake in a sponsorship to a target amount,
// staking up or reducing down depending on the current amount.
func (s *Service) EditStake(ctx context.Context, operatorID string, sponsorshipID string, currentWei *big.Int, targetAmount string) (string, error) {
	targetWei, err := unitconv.ParseDisplay(targetAmount)
	if err != nil || targetWei.Sign() < 0 {
		return "", ErrInvalidAmount
	}

	opts, err := s.transactOpts(ctx)
	if err != nil {
		return "", err
	}

	operator := common.HexToAddress(operatorID)
	sponsorship := common.HexToAddress(sponsorshipID)

	if currentWei != nil && targetWei.Cmp(currentWei) < 0 {
		tx, err := s.contractApi.ReduceStakeTo(opts, operator, sponsorship, targetWei)
		if err != nil {
			log.WithError(err).Error("reduce stake transaction failed")

			return "", err
		}

		return tx.Hash().Hex(), nil
	}

	delta := new(big.Int).Set(targetWei)
	if currentWei != nil {
		delta.Sub(delta, currentWei)
	}

	tx, err := s.contractApi.Stake(opts, operator, sponsorship, delta)
	if err != nil {
		log.WithError(err).Error("stake transaction failed")

		return "", err
	}

	return tx.Hash().Hex(), nil
}

// CollectEarnings withdraws accumulated earnings from the given
// sponsorships, or from all of them when none are named.
func (s *Service) CollectEarnings(ctx context.Context, operatorID string, sponsorshipIDs []string) (string, error) {
	opts, err := s.transactOpts(ctx)
	if err != nil {
		return "", err
	}

	sponsorships := make([]common.Address, 0, len(sponsorshipIDs))
	for _, id := range sponsorshipIDs {
		sponsorships = append(sponsorships, common.HexToAddress(id))
	}

	tx, err := s.contractApi.WithdrawEarnings(opts, common.HexToAddress(operatorID), sponsorships)
	if err != nil {
		log.WithError(err).Error("collect earnings transaction failed")

		return "", err
	}

	log.WithField("tx", tx.Hash().Hex()).Info("earnings collection submitted")

	return tx.Hash().Hex(), nil
}

// ProcessQueue pays out pending undelegation queue entries.
func (s *Service) ProcessQueue(ctx context.Context, operatorID string) (string, error) {
	opts, err := s.transactOpts(ctx)
	if err != nil {
		return "", err
	}

	tx, err := s.contractApi.PayOutQueue(opts, common.HexToAddress(operatorID), payOutQueueIterations)
	if err != nil {
		log.WithError(err).Error("pay out queue transaction failed")

		return "", err
	}

	return tx.Hash().Hex(), nil
}

// MyStake reads the connected account's governance-token position with an
// operator, zero in read-only mode.
func (s *Service) MyStake(ctx context.Context, operatorID string) (*big.Int, error) {
	if s.privateKey == nil {
		return new(big.Int), nil
	}

	return s.contractApi.BalanceInData(ctx, common.HexToAddress(operatorID), s.address)
}

// TokenBalance reads the account's liquid governance-token balance.
func (s *Service) TokenBalance(ctx context.Context) (*big.Int, error) {
	if s.privateKey == nil {
		return new(big.Int), nil
	}

	return s.contractApi.TokenBalanceOf(ctx, s.address)
}

// NativeBalances fetches native-asset balances for a set of addresses with
// bounded parallelism, short-lived cache hits skip the RPC round trip.
// Addresses that fail to resolve are reported as unavailable rather than
// failing the whole set.
func (s *Service) NativeBalances(ctx context.Context, addresses []string) map[string]string {
	balances := make(map[string]string, len(addresses))
	resolved := make([]string, 0, len(addresses))

	for _, addr := range addresses {
		if cached, ok := s.memCache.GetNativeBalance(addr); ok {
			balances[addr] = cached

			continue
		}

		resolved = append(resolved, addr)
	}

	type balanceResult struct {
		address string
		display string
	}

	results := make(chan balanceResult, len(resolved))
	swg := sizedwaitgroup.New(balanceFetchParallelism)

	for _, addr := range resolved {
		swg.Add()

		go func(addr string) {
			defer swg.Done()

			balance, err := s.ethService.BalanceAt(ctx, common.HexToAddress(addr))
			if err != nil {
				results <- balanceResult{address: addr, display: unitconv.NotAvailable}

				return
			}

			results <- balanceResult{address: addr, display: unitconv.ToDisplay(balance.String(), true)}
		}(addr)
	}

	swg.Wait()
	close(results)

	for result := range results {
		balances[result.address] = result.display

		if result.display != unitconv.NotAvailable {
			s.memCache.SetNativeBalance(result.address, result.display)
		}
	}

	return balances
}
