package draw_auction

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/generationsoftware/autotasks/src/utils/config"
	"github.com/generationsoftware/autotasks/src/utils/contracts"
	"github.com/generationsoftware/autotasks/src/utils/eth"
	"github.com/generationsoftware/autotasks/src/utils/eth/ethtest"
	"github.com/generationsoftware/autotasks/src/utils/signer"
	"github.com/stretchr/testify/require"
)

// Keeps every chain it connected to
type dialRecorder struct {
	chains []*ethtest.FakeChain
}

func (self *dialRecorder) dial(ctx context.Context, rpcUri string, chainId int64) (eth.Client, error) {
	if rpcUri == "" {
		return nil, errors.New("empty rpc uri")
	}
	chain := ethtest.NewFakeChain(chainId, multicallAddress)
	self.chains = append(self.chains, chain)
	return chain, nil
}

func newTestRegistry(provider *fakeProvider, signerChain map[int64]int64) *Registry {
	return NewRegistry(testConfig()).
		WithContractsProvider(provider).
		WithDialer(new(dialRecorder).dial).
		WithSignerFactory(func(ctx context.Context, relayConfig RelayConfig, client eth.Client) (signer.Signer, error) {
			if relayConfig.Credentials.PrivateKey == "" {
				return nil, signer.ErrNoCredentials
			}
			chainId := relayConfig.ChainId
			if bound, ok := signerChain[relayConfig.ChainId]; ok {
				chainId = bound
			}
			return newFakeSigner(chainId), nil
		})
}

func ptr[T any](v T) *T {
	return &v
}

func relayConfig(chainId int64) RelayConfig {
	return RelayConfig{
		ChainId:     chainId,
		JsonRpcUri:  "http://localhost",
		Credentials: signer.Credentials{ChainId: chainId, PrivateKey: "key"},
	}
}

func testProvider(chainIds ...int64) *fakeProvider {
	provider := &fakeProvider{blobs: make(map[int64]*contracts.ContractsBlob)}
	for _, chainId := range chainIds {
		provider.blobs[chainId] = relayBlob(defaultRelayState(chainId))
	}
	return provider
}

func TestBuildRelayTargets(t *testing.T) {
	registry := newTestRegistry(testProvider(10, 8453), nil)

	targets, err := registry.BuildRelayTargets(context.Background(), []RelayConfig{relayConfig(10), relayConfig(8453)})
	require.NoError(t, err)
	require.Len(t, targets, 2)

	for i, chainId := range []int64{10, 8453} {
		target := targets[i]
		require.Equal(t, chainId, target.ChainId)
		require.Equal(t, chainId, target.Signer.ChainId())
		require.NotNil(t, target.ReadConnection)
		require.NotNil(t, target.WriteConnection)
		require.Len(t, target.ContractsBlob.Contracts, 4)
		require.Nil(t, target.Contracts)
	}
}

func TestBuildRelayTargetsEmpty(t *testing.T) {
	targets, err := newTestRegistry(testProvider(), nil).BuildRelayTargets(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, targets)
}

func TestBuildRelayTargetsFailFast(t *testing.T) {
	for _, tc := range []struct {
		name    string
		configs func() []RelayConfig
		signers map[int64]int64
	}{
		{
			name: "invalid chain id",
			configs: func() []RelayConfig {
				return []RelayConfig{relayConfig(10), relayConfig(0)}
			},
		},
		{
			name: "missing key",
			configs: func() []RelayConfig {
				broken := relayConfig(8453)
				broken.Credentials.PrivateKey = ""
				return []RelayConfig{relayConfig(10), broken}
			},
		},
		{
			name: "unreachable rpc",
			configs: func() []RelayConfig {
				broken := relayConfig(8453)
				broken.JsonRpcUri = ""
				return []RelayConfig{relayConfig(10), broken}
			},
		},
		{
			name: "missing contracts",
			configs: func() []RelayConfig {
				return []RelayConfig{relayConfig(10), relayConfig(42161)}
			},
		},
		{
			name: "signer bound to another chain",
			configs: func() []RelayConfig {
				return []RelayConfig{relayConfig(10), relayConfig(8453)}
			},
			signers: map[int64]int64{8453: 10},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			recorder := new(dialRecorder)
			registry := newTestRegistry(testProvider(10, 8453), tc.signers).WithDialer(recorder.dial)

			targets, err := registry.BuildRelayTargets(context.Background(), tc.configs())
			require.ErrorIs(t, err, ErrSetup)
			require.Nil(t, targets)

			// Nothing stays connected after a failed build
			for _, chain := range recorder.chains {
				require.True(t, chain.Closed.Load(), "chain %d left open", chain.ChainId)
			}
		})
	}
}

func TestBuildRngTargetMissingContracts(t *testing.T) {
	recorder := new(dialRecorder)
	registry := newTestRegistry(testProvider(10), nil).WithDialer(recorder.dial)

	_, err := registry.BuildRngTarget(context.Background(), relayConfig(rngChainId))
	require.ErrorIs(t, err, ErrSetup)
	require.ErrorIs(t, err, contracts.ErrNotFound)

	require.Len(t, recorder.chains, 1)
	require.True(t, recorder.chains[0].Closed.Load())
}

func TestBuildRelayTargetsKeepsConnectionsOpen(t *testing.T) {
	recorder := new(dialRecorder)
	registry := newTestRegistry(testProvider(10, 8453), nil).WithDialer(recorder.dial)

	targets, err := registry.BuildRelayTargets(context.Background(), []RelayConfig{relayConfig(10), relayConfig(8453)})
	require.NoError(t, err)
	for _, chain := range recorder.chains {
		require.False(t, chain.Closed.Load())
	}

	for _, target := range targets {
		target.Close()
	}
	for _, chain := range recorder.chains {
		require.True(t, chain.Closed.Load())
	}
}

func TestRewardRecipientFallsBackToSigner(t *testing.T) {
	target := &RelayTarget{Signer: newFakeSigner(10)}
	require.Equal(t, relayerAddress, target.RewardRecipient())

	target.Config.RewardRecipient = recipientAddress
	require.Equal(t, recipientAddress, target.RewardRecipient())
}

func TestRelayConfigsFromConfig(t *testing.T) {
	conf := testConfig()
	conf.DrawAuction.MinProfitThresholdUsd = 7
	conf.DrawAuction.RewardRecipient = recipientAddress.Hex()
	conf.DrawAuction.RngRelayerApiKey = "api-key"
	conf.Relays = []config.Relay{
		{ChainId: 10, JsonRpcUri: "http://optimism", PrivateKey: "key"},
		{
			ChainId:               8453,
			JsonRpcUri:            "http://base",
			RelayerApiKey:         "base-key",
			MinProfitThresholdUsd: ptr(2.0),
			UseFlashbots:          ptr(true),
			RewardRecipient:       relayerAddress.Hex(),
		},
	}

	rng, relays := RelayConfigsFromConfig(conf)
	require.Equal(t, rngChainId, rng.ChainId)
	require.Equal(t, rngChainId, rng.Credentials.ChainId)
	require.Equal(t, "api-key", rng.Credentials.RelayerApiKey)
	require.Equal(t, 7.0, rng.MinProfitThresholdUsd)
	require.Equal(t, recipientAddress, rng.RewardRecipient)

	require.Len(t, relays, 2)

	require.Equal(t, int64(10), relays[0].ChainId)
	require.Equal(t, "key", relays[0].Credentials.PrivateKey)
	require.Equal(t, 7.0, relays[0].MinProfitThresholdUsd)
	require.Equal(t, recipientAddress, relays[0].RewardRecipient)
	require.False(t, relays[0].UseFlashbots)

	require.Equal(t, 2.0, relays[1].MinProfitThresholdUsd)
	require.Equal(t, relayerAddress, relays[1].RewardRecipient)
	require.True(t, relays[1].UseFlashbots)
	require.True(t, relays[1].Credentials.UseFlashbots)
}

func TestRelayConfigsFromConfigInvalidRecipient(t *testing.T) {
	conf := testConfig()
	conf.DrawAuction.RewardRecipient = "not an address"

	rng, relays := RelayConfigsFromConfig(conf)
	require.Equal(t, common.Address{}, rng.RewardRecipient)
	require.Empty(t, relays)
}

func TestRelayConfigsFromConfigExplicitZeroOverrides(t *testing.T) {
	conf := testConfig()
	conf.DrawAuction.MinProfitThresholdUsd = 5
	conf.DrawAuction.UseFlashbots = true
	conf.Relays = []config.Relay{
		{ChainId: 10, JsonRpcUri: "http://optimism", PrivateKey: "key", MinProfitThresholdUsd: ptr(0.0), UseFlashbots: ptr(false)},
		{ChainId: 8453, JsonRpcUri: "http://base", PrivateKey: "key"},
	}

	rng, relays := RelayConfigsFromConfig(conf)
	require.True(t, rng.UseFlashbots)
	require.Len(t, relays, 2)

	require.Equal(t, 0.0, relays[0].MinProfitThresholdUsd)
	require.False(t, relays[0].UseFlashbots)
	require.False(t, relays[0].Credentials.UseFlashbots)

	require.Equal(t, 5.0, relays[1].MinProfitThresholdUsd)
	require.True(t, relays[1].UseFlashbots)
	require.True(t, relays[1].Credentials.UseFlashbots)
}
