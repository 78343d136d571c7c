package contracts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/generationsoftware/autotasks/src/utils/config"
	"github.com/generationsoftware/autotasks/src/utils/logger"
	"github.com/generationsoftware/autotasks/src/utils/task"
	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotFound    = errors.New("contracts blob not found")
	ErrUnavailable = errors.New("contracts blob unavailable")
)

// Supplies the contracts deployed on a chain
type Provider interface {
	Fetch(ctx context.Context, chainId int64) (*ContractsBlob, error)
}

// Downloads contracts blobs from the configured store.
// Blobs are kept for a short time, so that consecutive passes don't download them again.
type HttpProvider struct {
	config     *config.Config
	log        *logrus.Entry
	httpClient *resty.Client
	cache      *cache.Cache
	urls       map[string]string
}

func NewHttpProvider(config *config.Config) (self *HttpProvider) {
	self = new(HttpProvider)
	self.config = config
	self.log = logger.NewSublogger("contracts-provider")
	self.urls = config.ContractsStore.Urls

	self.httpClient = resty.New().
		SetTimeout(config.ContractsStore.RequestTimeout).
		SetHeader("Accept", "application/json")

	self.cache = cache.New(config.ContractsStore.CacheTTL, 2*config.ContractsStore.CacheTTL)

	return
}

// Overrides the chain id -> url mapping
func (self *HttpProvider) WithUrls(urls map[string]string) *HttpProvider {
	self.urls = urls
	return self
}

func (self *HttpProvider) Fetch(ctx context.Context, chainId int64) (blob *ContractsBlob, err error) {
	key := strconv.FormatInt(chainId, 10)

	if cached, found := self.cache.Get(key); found {
		return cached.(*ContractsBlob), nil
	}

	url, ok := self.urls[key]
	if !ok || url == "" {
		return nil, fmt.Errorf("%w: no contracts store for chain %d", ErrNotFound, chainId)
	}

	err = task.NewRetry().
		WithContext(ctx).
		WithMaxElapsedTime(self.config.ContractsStore.MaxElapsedTime).
		WithMaxInterval(self.config.ContractsStore.MaxInterval).
		WithAcceptableDuration(self.config.ContractsStore.MaxInterval * 2).
		WithOnError(func(err error, isDurationAcceptable bool) error {
			if errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) {
				return task.Permanent(err)
			}

			log := self.log.WithError(err).WithField("chain_id", chainId)
			if isDurationAcceptable {
				log.Debug("Failed to download contracts blob, retrying...")
			} else {
				log.Warn("Failed to download contracts blob, retrying...")
			}
			return err
		}).
		Run(func() (err error) {
			blob, err = self.download(ctx, url)
			return
		})
	if err != nil {
		return nil, err
	}

	self.log.WithField("chain_id", chainId).
		WithField("version", blob.Version.String()).
		WithField("contracts", len(blob.Contracts)).
		Debug("Downloaded contracts blob")

	self.cache.SetDefault(key, blob)
	return
}

func (self *HttpProvider) download(ctx context.Context, url string) (blob *ContractsBlob, err error) {
	resp, err := self.httpClient.R().
		SetContext(ctx).
		SetResult(&ContractsBlob{}).
		ForceContentType("application/json").
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err.Error())
	}

	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
	}

	blob, ok := resp.Result().(*ContractsBlob)
	if !ok || blob == nil {
		return nil, fmt.Errorf("%w: failed to parse response", ErrUnavailable)
	}

	return
}
