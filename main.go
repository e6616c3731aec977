package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"openbroker/src/broker"
	"openbroker/src/connectors"
	"openbroker/src/database"
	"openbroker/src/feed"
	"openbroker/src/server"
)

var APP_NAME = os.Getenv("APP_NAME")

func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		level = logger.DebugLevel
	}

	logger.SetLevel(level)
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	SetupLogger()
	defer handlePanic()

	if err := database.InitMainDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	connector, err := connectors.NewExchangeConnector(connectors.GetConfig())
	if err != nil {
		logger.WithError(err).Fatal("Failed to build exchange connector")
	}

	service := broker.NewService(database.MainDB, connector)

	feedClient, err := feed.NewClient(feed.GetConfig(), service)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build exchange feed client")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := feedClient.Run(ctx); err != nil {
			logger.WithError(err).Info("Exchange feed client stopped")
		}
	}()

	server.StartServer(server.GetConfig().Port, service)
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", APP_NAME))
	}
	//nolint
	time.Sleep(time.Second * 5)
}
