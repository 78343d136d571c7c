package draw_auction

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/generationsoftware/autotasks/src/utils/config"
	"github.com/generationsoftware/autotasks/src/utils/contracts"
	"github.com/generationsoftware/autotasks/src/utils/eth"
	"github.com/generationsoftware/autotasks/src/utils/logger"
	"github.com/generationsoftware/autotasks/src/utils/signer"
	"github.com/sirupsen/logrus"
)

// Finished configuration of one chain the bot works on
type RelayConfig struct {
	ChainId    int64
	JsonRpcUri string

	Credentials signer.Credentials

	MinProfitThresholdUsd float64
	UseFlashbots          bool

	// Zero address means the signer's own address
	RewardRecipient common.Address
}

// Chain connection, signer and contracts of one chain. Owned by a single pass
type RelayTarget struct {
	ChainId       int64
	Config        RelayConfig
	ContractsBlob *contracts.ContractsBlob
	Signer        signer.Signer

	// Both refer to ChainId
	ReadConnection  eth.Client
	WriteConnection eth.Client

	// Filled lazily
	Contracts *RelayContracts
	Context   *RelayAuctionContext
}

func (self *RelayTarget) RewardRecipient() common.Address {
	if self.Config.RewardRecipient != (common.Address{}) {
		return self.Config.RewardRecipient
	}
	return self.Signer.Address()
}

func (self *RelayTarget) Close() {
	closeClient(self.ReadConnection)
	if self.WriteConnection != self.ReadConnection {
		closeClient(self.WriteConnection)
	}
}

func closeClient(client eth.Client) {
	if c, ok := client.(interface{ Close() }); ok {
		c.Close()
	}
}

// Opens a connection verified to serve the chain
type Dialer func(ctx context.Context, rpcUri string, chainId int64) (eth.Client, error)

// Derives the signer identity from key material
type SignerFactory func(ctx context.Context, config RelayConfig, client eth.Client) (signer.Signer, error)

// Builds relay targets from configuration
type Registry struct {
	config *config.Config
	log    *logrus.Entry

	provider      contracts.Provider
	dialer        Dialer
	signerFactory SignerFactory
}

func NewRegistry(config *config.Config) (self *Registry) {
	self = new(Registry)
	self.config = config
	self.log = logger.NewSublogger("registry")

	self.provider = contracts.NewHttpProvider(config)

	self.dialer = func(ctx context.Context, rpcUri string, chainId int64) (eth.Client, error) {
		return eth.GetEthClient(ctx, self.log, rpcUri, chainId)
	}

	self.signerFactory = func(ctx context.Context, relayConfig RelayConfig, client eth.Client) (signer.Signer, error) {
		return signer.New(ctx, config, relayConfig.Credentials, client)
	}
	return
}

func (self *Registry) WithContractsProvider(provider contracts.Provider) *Registry {
	self.provider = provider
	return self
}

func (self *Registry) WithDialer(dialer Dialer) *Registry {
	self.dialer = dialer
	return self
}

func (self *Registry) WithSignerFactory(signerFactory SignerFactory) *Registry {
	self.signerFactory = signerFactory
	return self
}

// Builds one target per config. Any failure aborts the whole call
func (self *Registry) BuildRelayTargets(ctx context.Context, configs []RelayConfig) (targets []*RelayTarget, err error) {
	targets = make([]*RelayTarget, 0, len(configs))
	for _, relayConfig := range configs {
		var target *RelayTarget
		target, err = self.build(ctx, relayConfig)
		if err != nil {
			for _, built := range targets {
				built.Close()
			}
			return nil, err
		}
		targets = append(targets, target)
	}
	return
}

// Builds the target for the RNG chain
func (self *Registry) BuildRngTarget(ctx context.Context, relayConfig RelayConfig) (*RelayTarget, error) {
	return self.build(ctx, relayConfig)
}

func (self *Registry) build(ctx context.Context, relayConfig RelayConfig) (target *RelayTarget, err error) {
	log := self.log.WithField("chain_id", relayConfig.ChainId)

	if relayConfig.ChainId <= 0 {
		return nil, fmt.Errorf("%w: invalid chain id %d", ErrSetup, relayConfig.ChainId)
	}

	client, err := self.dialer(ctx, relayConfig.JsonRpcUri, relayConfig.ChainId)
	if err != nil {
		return nil, fmt.Errorf("%w: chain %d: failed to connect: %w", ErrSetup, relayConfig.ChainId, err)
	}
	defer func() {
		if err != nil {
			closeClient(client)
		}
	}()

	s, err := self.signerFactory(ctx, relayConfig, client)
	if err != nil {
		return nil, fmt.Errorf("%w: chain %d: failed to derive signer: %w", ErrSetup, relayConfig.ChainId, err)
	}

	if s.ChainId() != relayConfig.ChainId {
		return nil, fmt.Errorf("%w: chain %d: signer bound to chain %d", ErrSetup, relayConfig.ChainId, s.ChainId())
	}

	blob, err := self.provider.Fetch(ctx, relayConfig.ChainId)
	if err != nil {
		return nil, fmt.Errorf("%w: chain %d: failed to fetch contracts: %w", ErrSetup, relayConfig.ChainId, err)
	}

	target = &RelayTarget{
		ChainId:         relayConfig.ChainId,
		Config:          relayConfig,
		ContractsBlob:   blob,
		Signer:          s,
		ReadConnection:  client,
		WriteConnection: client,
	}

	log.WithField("address", s.Address().Hex()).
		WithField("contracts", len(blob.Contracts)).
		Info("Relay target ready")
	return
}

// Chain settings of the RNG chain and relay chains, relay values inherit from the draw auction section
func RelayConfigsFromConfig(config *config.Config) (rng RelayConfig, relays []RelayConfig) {
	da := config.DrawAuction

	rng = RelayConfig{
		ChainId:    da.RngChainId,
		JsonRpcUri: da.RngJsonRpcUri,
		Credentials: signer.Credentials{
			ChainId:          da.RngChainId,
			PrivateKey:       da.RngPrivateKey,
			RelayerApiKey:    da.RngRelayerApiKey,
			RelayerApiSecret: da.RngRelayerApiSecret,
			RelayerApiUrl:    da.RngRelayerApiUrl,
			UseFlashbots:     da.UseFlashbots,
		},
		MinProfitThresholdUsd: da.MinProfitThresholdUsd,
		UseFlashbots:          da.UseFlashbots,
		RewardRecipient:       toAddress(da.RewardRecipient),
	}

	for _, relay := range config.Relays {
		useFlashbots := da.UseFlashbots
		if relay.UseFlashbots != nil {
			useFlashbots = *relay.UseFlashbots
		}

		threshold := da.MinProfitThresholdUsd
		if relay.MinProfitThresholdUsd != nil {
			threshold = *relay.MinProfitThresholdUsd
		}

		relayConfig := RelayConfig{
			ChainId:    relay.ChainId,
			JsonRpcUri: relay.JsonRpcUri,
			Credentials: signer.Credentials{
				ChainId:          relay.ChainId,
				PrivateKey:       relay.PrivateKey,
				RelayerApiKey:    relay.RelayerApiKey,
				RelayerApiSecret: relay.RelayerApiSecret,
				RelayerApiUrl:    relay.RelayerApiUrl,
				UseFlashbots:     useFlashbots,
			},
			MinProfitThresholdUsd: threshold,
			UseFlashbots:          useFlashbots,
			RewardRecipient:       toAddress(relay.RewardRecipient),
		}

		if relayConfig.RewardRecipient == (common.Address{}) {
			relayConfig.RewardRecipient = rng.RewardRecipient
		}

		relays = append(relays, relayConfig)
	}
	return
}

func toAddress(v string) common.Address {
	if !common.IsHexAddress(v) {
		return common.Address{}
	}
	return common.HexToAddress(v)
}
