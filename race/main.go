package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"operator-console/console/rendering"
	"operator-console/goutils/health"
	"operator-console/goutils/logger"
	"operator-console/goutils/settings"
	"operator-console/graph"
	"operator-console/race/service"
)

func main() {
	logger.InitLogger()

	settingsObj := settings.ParseSettings()

	graphClient := graph.InitClient(settingsObj)
	renderer := rendering.NewLogRenderer()

	raceService := service.InitService(graphClient, renderer)

	// health check is a non-blocking http listener
	health.HealthCheck(settingsObj.Healthcheck)

	ctx, cancel := context.WithCancel(context.Background())

	if err := raceService.Load(ctx); err != nil {
		log.WithError(err).Fatal("failed to load the ranking timeline")
	}

	raceService.Player().Toggle()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	raceService.Player().Stop()
}
