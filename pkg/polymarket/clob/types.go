// Package clob provides a client for the Polymarket CLOB (Central Limit
// Order Book) API: price reads, L1/L2 authentication, and order submission.
package clob

import (
	"time"
)

const (
	// DefaultBaseURL is the CLOB API base URL
	DefaultBaseURL = "https://clob.polymarket.com"

	// ChainID for Polygon mainnet
	ChainIDPolygon = 137
)

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType represents the time-in-force of an order.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC" // Good Till Cancelled
	OrderTypeFOK OrderType = "FOK" // Fill Or Kill
	OrderTypeGTD OrderType = "GTD" // Good Till Date
)

// OrderStatus represents the status of an order.
type OrderStatus string

const (
	OrderStatusLive      OrderStatus = "LIVE"
	OrderStatusMatched   OrderStatus = "MATCHED"
	OrderStatusDelayed   OrderStatus = "DELAYED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Order represents a resting or filled order as reported by the API.
type Order struct {
	ID            string      `json:"id"`
	Status        OrderStatus `json:"status"`
	Owner         string      `json:"owner"`
	Maker         string      `json:"maker"`
	TokenID       string      `json:"asset_id"`
	Side          OrderSide   `json:"side"`
	Price         string      `json:"price"`
	Size          string      `json:"size"`
	SizeFilled    string      `json:"size_filled"`
	Expiration    string      `json:"expiration"`
	CreatedAt     time.Time   `json:"created_at"`
	AssociatedTxn string      `json:"associated_txn,omitempty"`
}

// OrderBookSummary represents the orderbook for a token.
type OrderBookSummary struct {
	Market    string       `json:"market"`
	TokenID   string       `json:"asset_id"`
	Hash      string       `json:"hash"`
	Timestamp string       `json:"timestamp"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
}

// PriceLevel represents a price level in the orderbook.
type PriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// MarketInfo represents market information from CLOB.
type MarketInfo struct {
	ConditionID      string  `json:"condition_id"`
	QuestionID       string  `json:"question_id"`
	Tokens           []Token `json:"tokens"`
	MinimumOrderSize string  `json:"minimum_order_size"`
	MinimumTickSize  string  `json:"minimum_tick_size"`
	QuestionTitle    string  `json:"question"`
	MarketSlug       string  `json:"market_slug"`
	GameStartTime    string  `json:"game_start_time,omitempty"`
	Active           bool    `json:"active"`
	Closed           bool    `json:"closed"`
	AcceptingOrders  bool    `json:"accepting_orders"`
	NegRisk          bool    `json:"neg_risk"`
}

// Token represents a token (one outcome) in a market.
type Token struct {
	TokenID string `json:"token_id"`
	Outcome string `json:"outcome"`
	Price   string `json:"price"`
	Winner  bool   `json:"winner"`
}

// BalanceAllowance reports collateral balance and exchange allowance.
type BalanceAllowance struct {
	Balance   string `json:"balance"`
	Allowance string `json:"allowance"`
}

// OrderArgs represents arguments for creating a limit order.
type OrderArgs struct {
	TokenID    string    `json:"token_id"`
	Side       OrderSide `json:"side"`
	Price      float64   `json:"price"`
	Size       float64   `json:"size"`
	OrderType  OrderType `json:"order_type,omitempty"`
	Expiration int64     `json:"expiration,omitempty"` // Unix timestamp
}

// SignedOrder represents a signed order ready for submission.
type SignedOrder struct {
	Order     OrderPayload `json:"order"`
	Signature string       `json:"signature"`
	Owner     string       `json:"owner"`
	OrderType OrderType    `json:"orderType"`
}

// OrderPayload is the order data sent to the API. Field order and
// naming match the exchange's EIP-712 Order struct.
type OrderPayload struct {
	Salt          string `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          string `json:"side"` // "BUY" or "SELL"
	SignatureType int    `json:"signatureType"`
}

// APICredentials holds CLOB L2 API credentials.
type APICredentials struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// PostOrderResponse is the response from posting an order.
type PostOrderResponse struct {
	OrderID  string `json:"orderID"`
	Success  bool   `json:"success"`
	Status   string `json:"status,omitempty"`
	ErrorMsg string `json:"errorMsg,omitempty"`
}

// CancelOrderResponse is the response from canceling orders.
type CancelOrderResponse struct {
	Canceled    []string        `json:"canceled"`
	NotCanceled []CancelFailure `json:"not_canceled,omitempty"`
}

// CancelFailure describes why an order couldn't be canceled.
type CancelFailure struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}
