package signer

import (
	"context"

	"github.com/generationsoftware/autotasks/src/utils/config"
	"github.com/generationsoftware/autotasks/src/utils/eth"
)

// Key material of one chain
type Credentials struct {
	ChainId          int64
	PrivateKey       string
	RelayerApiKey    string
	RelayerApiSecret string
	RelayerApiUrl    string
	UseFlashbots     bool
}

// Creates a signer for the chain. A private key takes precedence over relayer credentials.
func New(ctx context.Context, config *config.Config, credentials Credentials, client eth.Client) (Signer, error) {
	if credentials.PrivateKey != "" {
		self, err := NewLocalKeySigner(credentials.PrivateKey, credentials.ChainId, client)
		if err != nil {
			return nil, err
		}

		if credentials.UseFlashbots {
			self.WithFlashbots(NewFlashbotsClient(
				config.DrawAuction.FlashbotsRpcUrl,
				config.DrawAuction.FlashbotsChainIds,
				self.key,
				config.DrawAuction.SubmissionTimeout,
			))
		}
		return self, nil
	}

	if credentials.RelayerApiKey == "" || credentials.RelayerApiSecret == "" {
		return nil, ErrNoCredentials
	}

	var privateChainIds []int64
	if credentials.UseFlashbots {
		privateChainIds = config.DrawAuction.FlashbotsChainIds
	}

	url := credentials.RelayerApiUrl
	if url == "" {
		url = config.DrawAuction.RngRelayerApiUrl
	}

	return NewManagedRelayerSigner(ctx, ManagedRelayerParams{
		Url:             url,
		ApiKey:          credentials.RelayerApiKey,
		ApiSecret:       credentials.RelayerApiSecret,
		ChainId:         credentials.ChainId,
		Timeout:         config.DrawAuction.SubmissionTimeout,
		RateLimit:       config.DrawAuction.RelayerApiRateLimit,
		PrivateChainIds: privateChainIds,
	})
}
