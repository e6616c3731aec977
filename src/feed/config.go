package feed

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// FeedURL is the exchange's streaming endpoint. Stored at construction
	// and reused for every reconnect.
	FeedURL string `envconfig:"EXCHANGE_FEED_URL" default:"wss://api.openexchange.com/feed"`

	// BrokerID is the credential sent in the subscription message. Same
	// setting the order connector uses; no default on purpose.
	BrokerID string `envconfig:"BROKER_ID"`

	// ReconnectDelaySeconds is how long to wait after a disconnect before
	// dialing again. Loaded once at construction.
	ReconnectDelaySeconds int `envconfig:"RECONNECT_DELAY" default:"5"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
