package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"openbroker/src/broker"
	"openbroker/src/connectors"
	"openbroker/src/database"
	"openbroker/src/feed"
	"openbroker/src/server"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "OpenBroker CMD"
	app.Usage = "The OpenBroker command line interface"

	app.Commands = []cli.Command{
		apiCMD,
		feedCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	apiCMD = cli.Command{
		Name:        "api",
		Usage:       "run the broker HTTP API",
		Action:      apiAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Serve the broker order/position API without the feed consumer`,
	}
	feedCMD = cli.Command{
		Name:        "feed",
		Usage:       "run the exchange feed consumer",
		Action:      feedAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Consume the exchange trade feed without serving the API`,
	}
)

func newService() (*broker.Service, error) {
	if err := database.InitMainDB(); err != nil {
		return nil, err
	}

	connector, err := connectors.NewExchangeConnector(connectors.GetConfig())
	if err != nil {
		return nil, err
	}

	return broker.NewService(database.MainDB, connector), nil
}

func apiAction(_ *cli.Context) error {
	logrus.Info("Starting broker API CMD")

	service, err := newService()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	server.StartServer(server.GetConfig().Port, service)
	return nil
}

func feedAction(_ *cli.Context) error {
	logrus.Info("Starting exchange feed CMD")

	service, err := newService()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	feedClient, err := feed.NewClient(feed.GetConfig(), service)
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		cancel()
	}()

	if err := feedClient.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
