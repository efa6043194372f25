package clob

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/phenomenon0/dugout-tracker/pkg/eth"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// zero address: anyone can fill
const publicTaker = "0x0000000000000000000000000000000000000000"

// USDC has 6 decimals on Polygon.
var usdcScale = decimal.New(1, 6)

// Client is a CLOB API client.
type Client struct {
	baseURL    string
	chainID    int
	wallet     *eth.Wallet
	creds      *eth.APICredentials
	httpClient *http.Client
	limiter    *rate.Limiter
	sigType    int    // 0=EOA, 1=PolyProxy, 2=GnosisSafe
	funder     string // funder address (for proxy wallets)
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithCLOBBaseURL sets a custom base URL.
func WithCLOBBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithChainID sets the chain ID.
func WithChainID(chainID int) ClientOption {
	return func(c *Client) {
		c.chainID = chainID
	}
}

// WithCredentials sets L2 API credentials.
func WithCredentials(creds *APICredentials) ClientOption {
	return func(c *Client) {
		c.creds = &eth.APICredentials{
			APIKey:     creds.APIKey,
			Secret:     creds.Secret,
			Passphrase: creds.Passphrase,
		}
	}
}

// WithSignatureType sets the signature type.
// 0=EOA, 1=PolyProxy, 2=GnosisSafe
func WithSignatureType(sigType int) ClientOption {
	return func(c *Client) {
		c.sigType = sigType
	}
}

// WithFunder sets the funder address (for proxy wallets).
func WithFunder(funder string) ClientOption {
	return func(c *Client) {
		c.funder = funder
	}
}

// WithCLOBHTTPClient sets a custom HTTP client.
func WithCLOBHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a new CLOB API client with signing capability.
func NewClient(privateKey string, opts ...ClientOption) (*Client, error) {
	wallet, err := eth.NewWallet(privateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	c := &Client{
		baseURL:    DefaultBaseURL,
		chainID:    ChainIDPolygon,
		wallet:     wallet,
		httpClient: defaultHTTPClient(),
		limiter:    rate.NewLimiter(rate.Limit(10), 5),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.funder == "" {
		c.funder = wallet.AddressHex()
	}

	return c, nil
}

// NewPublicClient creates a CLOB client for public (unauthenticated)
// operations only: orderbooks, prices, and market data.
func NewPublicClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		chainID:    ChainIDPolygon,
		httpClient: defaultHTTPClient(),
		limiter:    rate.NewLimiter(rate.Limit(10), 5),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func defaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Address returns the wallet address.
func (c *Client) Address() string {
	return c.wallet.AddressHex()
}

// Funder returns the funder address.
func (c *Client) Funder() string {
	return c.funder
}

// HasCredentials returns true if L2 credentials are set.
func (c *Client) HasCredentials() bool {
	return c.creds != nil
}

// --- L1 Authentication ---

// CreateOrDeriveAPIKey derives existing L2 credentials, creating new
// ones if derivation fails. Uses L1 (EIP-712) authentication.
func (c *Client) CreateOrDeriveAPIKey(ctx context.Context) (*APICredentials, error) {
	creds, err := c.deriveAPIKey(ctx)
	if err == nil {
		return creds, nil
	}
	return c.createAPIKey(ctx)
}

func (c *Client) createAPIKey(ctx context.Context) (*APICredentials, error) {
	headers, err := c.l1Headers()
	if err != nil {
		return nil, err
	}

	var creds APICredentials
	if err := c.post(ctx, "/auth/api-key", headers, nil, &creds); err != nil {
		return nil, err
	}
	c.storeCreds(&creds)
	return &creds, nil
}

func (c *Client) deriveAPIKey(ctx context.Context) (*APICredentials, error) {
	headers, err := c.l1Headers()
	if err != nil {
		return nil, err
	}

	var creds APICredentials
	if err := c.get(ctx, "/auth/derive-api-key", headers, nil, &creds); err != nil {
		return nil, err
	}
	c.storeCreds(&creds)
	return &creds, nil
}

func (c *Client) l1Headers() (map[string]string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	signature, err := eth.SignClobAuth(c.wallet, int64(c.chainID), timestamp, big.NewInt(0))
	if err != nil {
		return nil, fmt.Errorf("sign failed: %w", err)
	}

	return eth.L1Headers(c.wallet.AddressHex(), signature, timestamp, 0), nil
}

func (c *Client) storeCreds(creds *APICredentials) {
	c.creds = &eth.APICredentials{
		APIKey:     creds.APIKey,
		Secret:     creds.Secret,
		Passphrase: creds.Passphrase,
	}
}

// --- Public Methods (no auth required) ---

// GetOrderBook fetches the orderbook for a token.
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (*OrderBookSummary, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	var book OrderBookSummary
	if err := c.get(ctx, "/book", nil, params, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

// GetPrice fetches the current price for a token on the given side.
func (c *Client) GetPrice(ctx context.Context, tokenID string, side OrderSide) (string, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)
	params.Set("side", string(side))

	var result struct {
		Price string `json:"price"`
	}
	if err := c.get(ctx, "/price", nil, params, &result); err != nil {
		return "", err
	}
	return result.Price, nil
}

// GetMidpoint fetches the midpoint price for a token.
func (c *Client) GetMidpoint(ctx context.Context, tokenID string) (string, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	var result struct {
		Mid string `json:"mid"`
	}
	if err := c.get(ctx, "/midpoint", nil, params, &result); err != nil {
		return "", err
	}
	return result.Mid, nil
}

// GetSpread fetches the bid-ask spread for a token.
func (c *Client) GetSpread(ctx context.Context, tokenID string) (bid, ask string, err error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	var result struct {
		Bid string `json:"bid"`
		Ask string `json:"ask"`
	}
	if err := c.get(ctx, "/spread", nil, params, &result); err != nil {
		return "", "", err
	}
	return result.Bid, result.Ask, nil
}

// GetMarket fetches market info by condition ID.
func (c *Client) GetMarket(ctx context.Context, conditionID string) (*MarketInfo, error) {
	var market MarketInfo
	if err := c.get(ctx, "/markets/"+conditionID, nil, nil, &market); err != nil {
		return nil, err
	}
	return &market, nil
}

// --- L2 Authenticated Methods ---

// GetBalanceAllowance fetches collateral balance and exchange allowance.
func (c *Client) GetBalanceAllowance(ctx context.Context) (*BalanceAllowance, error) {
	if !c.HasCredentials() {
		return nil, fmt.Errorf("L2 credentials required")
	}

	path := "/balance-allowance"
	headers, err := c.l2Headers("GET", path, nil)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("asset_type", "COLLATERAL")

	var ba BalanceAllowance
	if err := c.get(ctx, path, headers, params, &ba); err != nil {
		return nil, err
	}
	return &ba, nil
}

// GetOpenOrders fetches open orders for the authenticated user.
func (c *Client) GetOpenOrders(ctx context.Context) ([]Order, error) {
	if !c.HasCredentials() {
		return nil, fmt.Errorf("L2 credentials required")
	}

	headers, err := c.l2Headers("GET", "/orders", nil)
	if err != nil {
		return nil, err
	}

	var orders []Order
	if err := c.get(ctx, "/orders", headers, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// PostOrder submits a signed order.
func (c *Client) PostOrder(ctx context.Context, order *SignedOrder) (*PostOrderResponse, error) {
	if !c.HasCredentials() {
		return nil, fmt.Errorf("L2 credentials required")
	}

	body, err := json.Marshal(order)
	if err != nil {
		return nil, err
	}

	headers, err := c.l2Headers("POST", "/order", body)
	if err != nil {
		return nil, err
	}

	var resp PostOrderResponse
	if err := c.post(ctx, "/order", headers, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelOrder cancels an order by ID.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if !c.HasCredentials() {
		return fmt.Errorf("L2 credentials required")
	}

	body, err := json.Marshal([]string{orderID})
	if err != nil {
		return err
	}

	headers, err := c.l2Headers("DELETE", "/orders", body)
	if err != nil {
		return err
	}

	var resp CancelOrderResponse
	if err := c.delete(ctx, "/orders", headers, body, &resp); err != nil {
		return err
	}

	if len(resp.NotCanceled) > 0 {
		return fmt.Errorf("order not canceled: %s", resp.NotCanceled[0].Reason)
	}
	return nil
}

// --- Order Building ---

// BuildOrder creates an order payload from args.
func (c *Client) BuildOrder(args *OrderArgs) (*OrderPayload, error) {
	if c.wallet == nil {
		return nil, fmt.Errorf("signing wallet required")
	}

	salt, err := generateSalt()
	if err != nil {
		return nil, err
	}

	price := decimal.NewFromFloat(args.Price)
	size := decimal.NewFromFloat(args.Size)
	if price.Sign() <= 0 || size.Sign() <= 0 {
		return nil, fmt.Errorf("price and size must be positive")
	}

	usdc := price.Mul(size).Mul(usdcScale).Round(0)
	tokens := size.Mul(usdcScale).Round(0)

	var makerAmount, takerAmount string
	if args.Side == OrderSideBuy {
		// buying: maker pays USDC, receives tokens
		makerAmount = usdc.String()
		takerAmount = tokens.String()
	} else {
		makerAmount = tokens.String()
		takerAmount = usdc.String()
	}

	expiration := "0"
	if args.Expiration > 0 {
		expiration = strconv.FormatInt(args.Expiration, 10)
	}

	return &OrderPayload{
		Salt:          salt,
		Maker:         c.funder,
		Signer:        c.wallet.AddressHex(),
		Taker:         publicTaker,
		TokenID:       args.TokenID,
		MakerAmount:   makerAmount,
		TakerAmount:   takerAmount,
		Expiration:    expiration,
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          string(args.Side),
		SignatureType: c.sigType,
	}, nil
}

// SignOrder signs an order payload.
func (c *Client) SignOrder(order *OrderPayload, negRisk bool) (string, error) {
	exchangeAddr := eth.CTFExchangeAddress
	if negRisk {
		exchangeAddr = eth.NegRiskCTFExchangeAddress
	}

	salt, ok := new(big.Int).SetString(order.Salt, 10)
	if !ok {
		return "", fmt.Errorf("invalid salt %q", order.Salt)
	}
	tokenID, ok := new(big.Int).SetString(order.TokenID, 10)
	if !ok {
		return "", fmt.Errorf("invalid token id %q", order.TokenID)
	}
	makerAmount, _ := new(big.Int).SetString(order.MakerAmount, 10)
	takerAmount, _ := new(big.Int).SetString(order.TakerAmount, 10)
	expiration, _ := new(big.Int).SetString(order.Expiration, 10)
	nonce, _ := new(big.Int).SetString(order.Nonce, 10)
	feeRateBps, _ := new(big.Int).SetString(order.FeeRateBps, 10)

	var side uint8
	if order.Side == string(OrderSideSell) {
		side = 1
	}

	orderData := &eth.OrderData{
		Salt:          salt,
		Maker:         common.HexToAddress(order.Maker),
		Signer:        common.HexToAddress(order.Signer),
		Taker:         common.HexToAddress(order.Taker),
		TokenID:       tokenID,
		MakerAmount:   makerAmount,
		TakerAmount:   takerAmount,
		Expiration:    expiration,
		Nonce:         nonce,
		FeeRateBps:    feeRateBps,
		Side:          side,
		SignatureType: uint8(order.SignatureType),
	}

	return eth.SignOrder(c.wallet, int64(c.chainID), exchangeAddr, orderData)
}

// CreateAndPostOrder builds, signs, and posts an order.
func (c *Client) CreateAndPostOrder(ctx context.Context, args *OrderArgs, negRisk bool) (*PostOrderResponse, error) {
	order, err := c.BuildOrder(args)
	if err != nil {
		return nil, fmt.Errorf("build order: %w", err)
	}

	signature, err := c.SignOrder(order, negRisk)
	if err != nil {
		return nil, fmt.Errorf("sign order: %w", err)
	}

	orderType := args.OrderType
	if orderType == "" {
		orderType = OrderTypeGTC
	}

	return c.PostOrder(ctx, &SignedOrder{
		Order:     *order,
		Signature: signature,
		Owner:     c.funder,
		OrderType: orderType,
	})
}

// MarketBuy posts a fill-or-kill buy for the given USDC amount at the
// given limit price. Size is derived from amount/price.
func (c *Client) MarketBuy(ctx context.Context, tokenID string, usdcAmount, price float64, negRisk bool) (*PostOrderResponse, error) {
	if price <= 0 {
		return nil, fmt.Errorf("price must be positive")
	}

	size, _ := decimal.NewFromFloat(usdcAmount).
		Div(decimal.NewFromFloat(price)).
		Round(2).Float64()

	return c.CreateAndPostOrder(ctx, &OrderArgs{
		TokenID:   tokenID,
		Side:      OrderSideBuy,
		Price:     price,
		Size:      size,
		OrderType: OrderTypeFOK,
	}, negRisk)
}

// --- Internal helpers ---

func (c *Client) l2Headers(method, path string, body []byte) (map[string]string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	return eth.L2Headers(c.creds, c.funder, timestamp, method, path, body)
}

func (c *Client) get(ctx context.Context, path string, headers map[string]string, params url.Values, result interface{}) error {
	return c.do(ctx, "GET", path, headers, params, nil, result)
}

func (c *Client) post(ctx context.Context, path string, headers map[string]string, body []byte, result interface{}) error {
	return c.do(ctx, "POST", path, headers, nil, body, result)
}

func (c *Client) delete(ctx context.Context, path string, headers map[string]string, body []byte, result interface{}) error {
	return c.do(ctx, "DELETE", path, headers, nil, body, result)
}

func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, params url.Values, body []byte, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("api error %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

func generateSalt() (string, error) {
	max := new(big.Int).Lsh(big.NewInt(1), 128) // 2^128
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return n.String(), nil
}
