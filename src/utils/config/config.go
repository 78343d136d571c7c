package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/iancoleman/strcase"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const MAX_SLICE_LEN = 10

const ENV_PREFIX = "AUTOTASKS_"

// Config stores global configuration
type Config struct {
	// Is development mode on
	IsDevelopment bool

	// REST API address. API used for monitoring etc.
	RESTListenAddress string

	// Maximum time the bot will be closing before stop is forced.
	StopTimeout time.Duration

	// Logging level
	LogLevel string

	DrawAuction    DrawAuction
	Relays         []Relay
	ContractsStore ContractsStore
}

func setDefaults() {
	viper.SetDefault("IsDevelopment", "false")
	viper.SetDefault("RESTListenAddress", ":7777")
	viper.SetDefault("LogLevel", "DEBUG")
	viper.SetDefault("StopTimeout", "30s")

	setDrawAuctionDefaults()
	setRelaysDefaults()
	setContractsStoreDefaults()
}

func Default() (config *Config) {
	config, _ = Load("")
	return
}

func IsIndex(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func BindEnv(path []string, val reflect.Value) {
	if val.Kind() == reflect.Slice {
		_, ok := val.Interface().([]Relay)
		if ok {
			for i := 0; i < MAX_SLICE_LEN; i++ {
				newPath := make([]string, len(path))
				copy(newPath, path)
				newPath = append(newPath, fmt.Sprintf("%d", i))
				BindEnv(newPath, reflect.ValueOf(Relay{}))
			}
		} else {
			// Slice of base types
			key := strings.ToLower(strings.Join(path, "."))
			env := ENV_PREFIX + strcase.ToScreamingSnake(strings.Join(path, "_"))
			err := viper.BindEnv(key, env)
			if err != nil {
				panic(err)
			}
		}
	} else if val.Kind() != reflect.Struct {
		// Base types
		key := path[0]
		for _, p := range path[1:] {
			if IsIndex(p) {
				key += "[" + p + "]"
			} else {
				key += "." + p
			}
		}

		env := ENV_PREFIX + strcase.ToScreamingSnake(strings.Join(path, "_"))
		err := viper.BindEnv(key, env)
		if err != nil {
			panic(err)
		}
	} else {
		// Iterates over struct fields
		for i := 0; i < val.NumField(); i++ {
			newPath := make([]string, len(path))
			copy(newPath, path)
			newPath = append(newPath, val.Type().Field(i).Name)
			BindEnv(newPath, val.Field(i))
		}
	}
}

func getSliceLength(key string) int {
	var max int
	for viperKey := range viper.AllSettings() {
		var idx int
		_, err := fmt.Sscanf(viperKey, key+"[%d]", &idx)
		if err != nil {
			continue
		}
		idx += 1
		if idx > max {
			max = idx
		}
	}
	return max
}

func defaultDecoderConfig(output interface{}) *mapstructure.DecoderConfig {
	c := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           output,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	}
	return c
}

// Load configuration from file and env
func Load(filename string) (config *Config, err error) {
	viper.Reset()
	viper.SetConfigType("json")

	setDefaults()

	// Visits every field and registers upper snake case ENV name for it
	// Works with embedded structs
	BindEnv([]string{}, reflect.ValueOf(Config{}))

	// Empty filename means we use default values
	if filename != "" {
		var content []byte
		/* #nosec */
		content, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}

		err = viper.ReadConfig(bytes.NewBuffer(content))
		if err != nil {
			return nil, err
		}
	}

	config = new(Config)
	err = viper.Unmarshal(&config)
	if err != nil {
		return nil, err
	}

	err = unmarshalRelays(config)
	if err != nil {
		return nil, err
	}

	return
}

// Validate checks the parts of the configuration needed before any chain is contacted
func (self *Config) Validate() (err error) {
	if self.DrawAuction.RngChainId <= 0 {
		return errors.New("rng chain id is not set")
	}
	if self.DrawAuction.RngJsonRpcUri == "" {
		return errors.New("rng json rpc uri is not set")
	}
	if self.DrawAuction.RngPrivateKey == "" && self.DrawAuction.RngRelayerApiKey == "" {
		return errors.New("rng chain needs a private key or relayer api credentials")
	}
	if self.DrawAuction.MinProfitThresholdUsd < 0 {
		return errors.New("min profit threshold can't be negative")
	}

	for i, relay := range self.Relays {
		if relay.ChainId <= 0 {
			return fmt.Errorf("relay %d: chain id is not set", i)
		}
		if relay.JsonRpcUri == "" {
			return fmt.Errorf("relay %d: json rpc uri is not set", i)
		}
		if relay.PrivateKey == "" && relay.RelayerApiKey == "" {
			return fmt.Errorf("relay %d: needs a private key or relayer api credentials", i)
		}
		if relay.MinProfitThresholdUsd != nil && *relay.MinProfitThresholdUsd < 0 {
			return fmt.Errorf("relay %d: min profit threshold can't be negative", i)
		}
	}
	return nil
}
