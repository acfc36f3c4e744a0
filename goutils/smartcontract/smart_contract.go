package smartcontract

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	log "github.com/sirupsen/logrus"
	"github.com/swagftw/gi"

	"operator-console/goutils/settings"
)

// Service covers every on-chain read and transaction the console performs.
// Operator contracts are deployed per operator, so their methods take the
// contract address explicitly; the token and network-config contracts are
// fixed per chain.
type Service interface {
	OperatorTokenBalance(ctx context.Context, operator common.Address, holder common.Address) (*big.Int, error)
	BalanceInData(ctx context.Context, operator common.Address, holder common.Address) (*big.Int, error)
	Undelegate(opts *bind.TransactOpts, operator common.Address, operatorTokens *big.Int) (*types.Transaction, error)
	PayOutQueue(opts *bind.TransactOpts, operator common.Address, maxIterations *big.Int) (*types.Transaction, error)
	Stake(opts *bind.TransactOpts, operator common.Address, sponsorship common.Address, amountWei *big.Int) (*types.Transaction, error)
	ReduceStakeTo(opts *bind.TransactOpts, operator common.Address, sponsorship common.Address, targetWei *big.Int) (*types.Transaction, error)
	WithdrawEarnings(opts *bind.TransactOpts, operator common.Address, sponsorships []common.Address) (*types.Transaction, error)
	TokenBalanceOf(ctx context.Context, holder common.Address) (*big.Int, error)
	TransferAndCall(opts *bind.TransactOpts, to common.Address, amountWei *big.Int, data []byte) (*types.Transaction, error)
	MinimumDelegationWei(ctx context.Context) (*big.Int, error)
}

const operatorContractABI = `[
	{"type": "function", "name": "balanceOf", "stateMutability": "view", "inputs": [{"name": "account", "type": "address"}], "outputs": [{"name": "", "type": "uint256"}]},
	{"type": "function", "name": "balanceInData", "stateMutability": "view", "inputs": [{"name": "account", "type": "address"}], "outputs": [{"name": "", "type": "uint256"}]},
	{"type": "function", "name": "undelegate", "stateMutability": "nonpayable", "inputs": [{"name": "amountPoolTokenWei", "type": "uint256"}], "outputs": []},
	{"type": "function", "name": "payOutQueue", "stateMutability": "nonpayable", "inputs": [{"name": "maxIterations", "type": "uint256"}], "outputs": []},
	{"type": "function", "name": "stake", "stateMutability": "nonpayable", "inputs": [{"name": "sponsorship", "type": "address"}, {"name": "amountWei", "type": "uint256"}], "outputs": []},
	{"type": "function", "name": "reduceStakeTo", "stateMutability": "nonpayable", "inputs": [{"name": "sponsorship", "type": "address"}, {"name": "targetStakeWei", "type": "uint256"}], "outputs": []},
	{"type": "function", "name": "withdrawEarningsFromSponsorships", "stateMutability": "nonpayable", "inputs": [{"name": "sponsorshipAddresses", "type": "address[]"}], "outputs": []}
]`

const tokenContractABI = `[
	{"type": "function", "name": "balanceOf", "stateMutability": "view", "inputs": [{"name": "account", "type": "address"}], "outputs": [{"name": "", "type": "uint256"}]},
	{"type": "function", "name": "transferAndCall", "stateMutability": "nonpayable", "inputs": [{"name": "to", "type": "address"}, {"name": "amount", "type": "uint256"}, {"name": "data", "type": "bytes"}], "outputs": [{"name": "", "type": "bool"}]}
]`

const configContractABI = `[
	{"type": "function", "name": "minimumDelegationWei", "stateMutability": "view", "inputs": [], "outputs": [{"name": "", "type": "uint256"}]}
]`

type ContractApi struct {
	client *ethclient.Client

	operatorABI abi.ABI
	token       *bind.BoundContract
	config      *bind.BoundContract
}

func InitContractApi(settingsObj *settings.SettingsObj, client *ethclient.Client) Service {
	operatorABI, err := abi.JSON(strings.NewReader(operatorContractABI))
	if err != nil {
		log.WithError(err).Fatal("failed to parse operator contract abi")
	}

	tokenABI, err := abi.JSON(strings.NewReader(tokenContractABI))
	if err != nil {
		log.WithError(err).Fatal("failed to parse token contract abi")
	}

	configABI, err := abi.JSON(strings.NewReader(configContractABI))
	if err != nil {
		log.WithError(err).Fatal("failed to parse config contract abi")
	}

	api := &ContractApi{
		client:      client,
		operatorABI: operatorABI,
		token:       bind.NewBoundContract(common.HexToAddress(settingsObj.Chain.TokenAddress), tokenABI, client, client, client),
		config:      bind.NewBoundContract(common.HexToAddress(settingsObj.Chain.ConfigAddress), configABI, client, client, client),
	}

	if err := gi.Inject(api); err != nil {
		log.WithError(err).Fatal("failed to inject contract api")
	}

	return api
}

func (c *ContractApi) operatorContract(operator common.Address) *bind.BoundContract {
	return bind.NewBoundContract(operator, c.operatorABI, c.client, c.client, c.client)
}

func callUint256(ctx context.Context, contract *bind.BoundContract, method string, params ...interface{}) (*big.Int, error) {
	var out []interface{}

	err := contract.Call(&bind.CallOpts{Context: ctx}, &out, method, params...)
	if err != nil {
		log.WithError(err).WithField("method", method).Error("contract call failed")

		return nil, err
	}

	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (c *ContractApi) OperatorTokenBalance(ctx context.Context, operator common.Address, holder common.Address) (*big.Int, error) {
	return callUint256(ctx, c.operatorContract(operator), "balanceOf", holder)
}

func (c *ContractApi) BalanceInData(ctx context.Context, operator common.Address, holder common.Address) (*big.Int, error) {
	return callUint256(ctx, c.operatorContract(operator), "balanceInData", holder)
}

func (c *ContractApi) Undelegate(opts *bind.TransactOpts, operator common.Address, operatorTokens *big.Int) (*types.Transaction, error) {
	return c.operatorContract(operator).Transact(opts, "undelegate", operatorTokens)
}

func (c *ContractApi) PayOutQueue(opts *bind.TransactOpts, operator common.Address, maxIterations *big.Int) (*types.Transaction, error) {
	return c.operatorContract(operator).Transact(opts, "payOutQueue", maxIterations)
}

func (c *ContractApi) Stake(opts *bind.TransactOpts, operator common.Address, sponsorship common.Address, amountWei *big.Int) (*types.Transaction, error) {
	return c.operatorContract(operator).Transact(opts, "stake", sponsorship, amountWei)
}

func (c *ContractApi) ReduceStakeTo(opts *bind.TransactOpts, operator common.Address, sponsorship common.Address, targetWei *big.Int) (*types.Transaction, error) {
	return c.operatorContract(operator).Transact(opts, "reduceStakeTo", sponsorship, targetWei)
}

func (c *ContractApi) WithdrawEarnings(opts *bind.TransactOpts, operator common.Address, sponsorships []common.Address) (*types.Transaction, error) {
	return c.operatorContract(operator).Transact(opts, "withdrawEarningsFromSponsorships", sponsorships)
}

func (c *ContractApi) TokenBalanceOf(ctx context.Context, holder common.Address) (*big.Int, error) {
	return callUint256(ctx, c.token, "balanceOf", holder)
}

func (c *ContractApi) TransferAndCall(opts *bind.TransactOpts, to common.Address, amountWei *big.Int, data []byte) (*types.Transaction, error) {
	return c.token.Transact(opts, "transferAndCall", to, amountWei, data)
}

func (c *ContractApi) MinimumDelegationWei(ctx context.Context) (*big.Int, error) {
	return callUint256(ctx, c.config, "minimumDelegationWei")
}
