package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"operator-console/caching"
	"operator-console/console/rendering"
	"operator-console/console/service"
	"operator-console/console/streams"
	"operator-console/console/wallet"
	"operator-console/explorer"
	"operator-console/goutils/ethclient"
	"operator-console/goutils/health"
	"operator-console/goutils/logger"
	"operator-console/goutils/redisutils"
	"operator-console/goutils/settings"
	"operator-console/goutils/smartcontract"
	"operator-console/graph"
)

func main() {
	logger.InitLogger()

	settingsObj := settings.ParseSettings()

	redisClient := redisutils.InitRedisClient(
		settingsObj.Redis.Host,
		settingsObj.Redis.Port,
		settingsObj.Redis.Db,
		settingsObj.Redis.PoolSize,
		settingsObj.Redis.Password,
	)

	caching.NewRedisCache(redisClient, redisClient)
	caching.NewLRUCache()

	graphClient := graph.InitClient(settingsObj)
	explorerClient := explorer.InitClient(settingsObj)

	chainService, ethClient := ethclient.NewClient(settingsObj)
	verifyChain(chainService, settingsObj)

	smartcontract.InitContractApi(settingsObj, ethClient)

	walletService := wallet.InitService()
	feed := streams.InitCoordinationFeed(settingsObj)
	renderer := rendering.NewLogRenderer()

	consoleService := service.InitService(graphClient, explorerClient, walletService, feed, renderer)

	priceTicker := streams.InitPriceTicker(settingsObj)

	ctx, cancel := context.WithCancel(context.Background())

	priceTicker.Start(ctx, func(point streams.PricePoint) {
		log.WithFields(log.Fields{
			"stream": point.StreamID,
			"price":  point.PriceUSD,
		}).Debug("price tick")
	})

	// health check is a non-blocking http listener
	health.HealthCheck(settingsObj.Healthcheck)

	consoleService.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	priceTicker.Stop()

	if err := feed.Teardown(); err != nil {
		log.WithError(err).Error("error while tearing down the coordination feed")
	}

	if err := redisClient.Close(); err != nil {
		log.WithError(err).Error("error while closing redis client")
	}
}

// verifyChain confirms the RPC endpoint serves the configured chain and logs
// its head block. A mismatch is fatal, every signed transaction would be
// rejected anyway.
func verifyChain(chainService ethclient.Service, settingsObj *settings.SettingsObj) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	chainID, err := chainService.ChainID(ctx)
	if err != nil {
		log.WithError(err).Fatal("failed to query chain id from rpc endpoint")
	}

	if chainID.Int64() != settingsObj.Chain.ChainID {
		log.WithFields(log.Fields{
			"configured": settingsObj.Chain.ChainID,
			"reported":   chainID,
		}).Fatal("rpc endpoint serves a different chain than configured")
	}

	blockNumber, err := chainService.BlockNumber(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to query head block number")

		return
	}

	log.WithFields(log.Fields{
		"chainId": chainID,
		"block":   blockNumber,
	}).Info("connected to chain rpc")
}
