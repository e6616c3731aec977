package connectors

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// BrokerID identifies this gateway instance to the exchange. It is
	// attached as a cookie on every outbound call and there is no sane
	// default: construction fails when it is missing.
	BrokerID string `envconfig:"BROKER_ID"`

	ExchangeBaseURL string `envconfig:"EXCHANGE_BASE_URL" default:"https://api.openexchange.com"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
