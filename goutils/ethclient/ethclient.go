package ethclient

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	log "github.com/sirupsen/logrus"
	"github.com/swagftw/gi"

	"operator-console/goutils/httpclient"
	"operator-console/goutils/settings"
)

type Service interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
}

type Client struct {
	client *ethclient.Client
}

func NewClient(settingsObj *settings.SettingsObj) (Service, *ethclient.Client) {
	httpClient := httpclient.GetDefaultHTTPClient(settingsObj)

	rpClient, err := rpc.DialOptions(context.Background(), settingsObj.Chain.RPCURL, rpc.WithHTTPClient(httpClient.HTTPClient))
	if err != nil {
		log.WithError(err).Fatal("failed to init rpc client")
	}

	ethClient := ethclient.NewClient(rpClient)

	client := &Client{client: ethClient}

	if err := gi.Inject(client); err != nil {
		log.WithError(err).Fatal("failed to inject eth client")
	}

	return client, ethClient
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	chainId, err := c.client.ChainID(ctx)
	if err != nil {
		log.WithError(err).Error("failed to get chain id")
	}

	return chainId, err
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	blockNumber, err := c.client.BlockNumber(ctx)
	if err != nil {
		log.WithError(err).Error("failed to get block number")
	}

	return blockNumber, err
}

func (c *Client) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := c.client.BalanceAt(ctx, account, nil)
	if err != nil {
		log.WithError(err).Error("failed to get native balance")
	}

	return balance, err
}
