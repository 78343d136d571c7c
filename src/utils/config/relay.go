package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Downstream chain hosting a prize pool. Unset overrides inherit from DrawAuction
type Relay struct {
	ChainId    int64
	JsonRpcUri string

	// Key material, either a private key or managed relayer credentials
	PrivateKey       string
	RelayerApiKey    string
	RelayerApiSecret string
	RelayerApiUrl    string

	// Per target overrides, nil means not set
	MinProfitThresholdUsd *float64
	UseFlashbots          *bool

	// Empty means the DrawAuction recipient
	RewardRecipient string
}

func setRelaysDefaults() {
	viper.SetDefault("Relays", []Relay{})
}

// Relays may also come from env variables (AUTOTASKS_RELAYS_0_CHAIN_ID etc.).
// Viper doesn't understand indexed keys, so they are decoded by hand.
func unmarshalRelays(config *Config) (err error) {
	length := getSliceLength("relays")
	for i := 0; i < length; i++ {
		raw, ok := viper.Get(fmt.Sprintf("relays[%d]", i)).(map[string]interface{})
		if !ok || len(raw) == 0 {
			continue
		}

		for len(config.Relays) <= i {
			config.Relays = append(config.Relays, Relay{})
		}

		var decoder *mapstructure.Decoder
		decoder, err = mapstructure.NewDecoder(defaultDecoderConfig(&config.Relays[i]))
		if err != nil {
			return
		}

		err = decoder.Decode(raw)
		if err != nil {
			return
		}
	}
	return
}
