package pricefeed

import (
	"context"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/tendermint/tendermint/libs/log"
	"io"
	"net/http"
	"net/url"
	"roundbft/behaviour"
	"strings"
	"time"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DefaultBaseURL  = "https://api.coingecko.com/api/v3"
	DefaultCurrency = "usd"

	defaultTimeout = 10 * time.Second
	maxBodySize    = 1 << 20
)

var ErrPriceNotFound = errors.New("price not found in response")

// Client 查询coingecko风格的 /simple/price 接口
// 响应格式 {"<token>":{"<currency>":<price>}}
type Client struct {
	baseURL  string
	currency string
	http     *http.Client
	logger   log.Logger
}

var _ behaviour.PriceSource = (*Client)(nil)

type Option func(*Client)

func WithCurrency(currency string) Option {
	return func(c *Client) {
		c.currency = strings.ToLower(currency)
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func NewClient(baseURL string, options ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		currency: DefaultCurrency,
		http:     &http.Client{Timeout: defaultTimeout},
		logger:   log.NewNopLogger(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *Client) SetLogger(logger log.Logger) {
	c.logger = logger
}

// Price implements behaviour.PriceSource.
func (c *Client) Price(ctx context.Context, tokenID string) (float64, error) {
	q := url.Values{}
	q.Set("ids", tokenID)
	q.Set("vs_currencies", c.currency)
	endpoint := c.baseURL + "/simple/price?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, errors.Wrap(err, "build price request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, errors.Wrapf(err, "get %s", endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, errors.Errorf("get %s: unexpected status %d", endpoint, resp.StatusCode)
	}

	var body map[string]map[string]float64
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&body); err != nil {
		return 0, errors.Wrap(err, "decode price response")
	}
	price, ok := body[tokenID][c.currency]
	if !ok {
		return 0, errors.Wrapf(ErrPriceNotFound, "%s/%s", tokenID, c.currency)
	}
	c.logger.Debug("price", "token", tokenID, "currency", c.currency, "price", price)
	return price, nil
}

// Static always returns the same price. 没有配置价格接口时使用
type Static float64

func (s Static) Price(ctx context.Context, tokenID string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return float64(s), nil
}
