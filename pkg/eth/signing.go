package eth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// Polymarket CTF Exchange contract addresses on Polygon.
var (
	CTFExchangeAddress        = common.HexToAddress("0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E")
	NegRiskCTFExchangeAddress = common.HexToAddress("0xC5d563A36AE78145C45a50134d48A1215220f80a")
)

// SignClobAuth signs the ClobAuthDomain message used to create or derive
// L2 API credentials (L1 auth).
func SignClobAuth(w *Wallet, chainID int64, timestamp string, nonce *big.Int) (string, error) {
	domainSep := hashDomain("ClobAuthDomain", "1", chainID, nil)

	typeHash := crypto.Keccak256Hash([]byte("ClobAuth(address address,string timestamp,uint256 nonce)"))
	msgHash := crypto.Keccak256Hash(
		typeHash.Bytes(),
		crypto.Keccak256Hash(w.Address().Bytes()).Bytes(),
		crypto.Keccak256Hash([]byte(timestamp)).Bytes(),
		common.LeftPadBytes(nonce.Bytes(), 32),
	)

	sig, err := w.SignHash(typedDataHash(domainSep, msgHash).Bytes())
	if err != nil {
		return "", fmt.Errorf("sign auth: %w", err)
	}
	return fmt.Sprintf("0x%x", sig), nil
}

// OrderData is the CTF exchange order in its signable form.
type OrderData struct {
	Salt          *big.Int
	Maker         common.Address
	Signer        common.Address
	Taker         common.Address
	TokenID       *big.Int
	MakerAmount   *big.Int
	TakerAmount   *big.Int
	Expiration    *big.Int
	Nonce         *big.Int
	FeeRateBps    *big.Int
	Side          uint8
	SignatureType uint8
}

// SignOrder signs a CTF exchange order with EIP-712.
func SignOrder(w *Wallet, chainID int64, exchange common.Address, order *OrderData) (string, error) {
	domainSep := hashDomain("CTFExchange", "1", chainID, &exchange)

	typeHash := crypto.Keccak256Hash([]byte(
		"Order(uint256 salt,address maker,address signer,address taker," +
			"uint256 tokenId,uint256 makerAmount,uint256 takerAmount," +
			"uint256 expiration,uint256 nonce,uint256 feeRateBps," +
			"uint8 side,uint8 signatureType)"))

	msgHash := crypto.Keccak256Hash(
		typeHash.Bytes(),
		math.U256Bytes(order.Salt),
		common.LeftPadBytes(order.Maker.Bytes(), 32),
		common.LeftPadBytes(order.Signer.Bytes(), 32),
		common.LeftPadBytes(order.Taker.Bytes(), 32),
		math.U256Bytes(order.TokenID),
		math.U256Bytes(order.MakerAmount),
		math.U256Bytes(order.TakerAmount),
		math.U256Bytes(order.Expiration),
		math.U256Bytes(order.Nonce),
		math.U256Bytes(order.FeeRateBps),
		common.LeftPadBytes([]byte{order.Side}, 32),
		common.LeftPadBytes([]byte{order.SignatureType}, 32),
	)

	sig, err := w.SignHash(typedDataHash(domainSep, msgHash).Bytes())
	if err != nil {
		return "", fmt.Errorf("sign order: %w", err)
	}
	return fmt.Sprintf("0x%x", sig), nil
}

func typedDataHash(domainSep, msgHash common.Hash) common.Hash {
	return crypto.Keccak256Hash([]byte{0x19, 0x01}, domainSep.Bytes(), msgHash.Bytes())
}

func hashDomain(name, version string, chainID int64, contract *common.Address) common.Hash {
	if contract == nil {
		typeHash := crypto.Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId)"))
		return crypto.Keccak256Hash(
			typeHash.Bytes(),
			crypto.Keccak256Hash([]byte(name)).Bytes(),
			crypto.Keccak256Hash([]byte(version)).Bytes(),
			common.LeftPadBytes(big.NewInt(chainID).Bytes(), 32),
		)
	}
	typeHash := crypto.Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
	return crypto.Keccak256Hash(
		typeHash.Bytes(),
		crypto.Keccak256Hash([]byte(name)).Bytes(),
		crypto.Keccak256Hash([]byte(version)).Bytes(),
		common.LeftPadBytes(big.NewInt(chainID).Bytes(), 32),
		common.LeftPadBytes(contract.Bytes(), 32),
	)
}

// APICredentials holds Polymarket L2 API credentials.
type APICredentials struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// L2Headers signs an HTTP request with HMAC-SHA256 and returns the auth
// headers to attach.
func L2Headers(creds *APICredentials, funder, timestamp, method, path string, body []byte) (map[string]string, error) {
	message := timestamp + method + path
	if len(body) > 0 {
		message += string(body)
	}

	secret, err := base64.URLEncoding.DecodeString(creds.Secret)
	if err != nil {
		secret, err = base64.StdEncoding.DecodeString(creds.Secret)
		if err != nil {
			return nil, fmt.Errorf("decode secret: %w", err)
		}
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(message))
	signature := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"POLY_ADDRESS":    funder,
		"POLY_SIGNATURE":  signature,
		"POLY_TIMESTAMP":  timestamp,
		"POLY_API_KEY":    creds.APIKey,
		"POLY_PASSPHRASE": creds.Passphrase,
	}, nil
}

// L1Headers returns the headers for an L1 (EIP-712) authenticated request.
func L1Headers(address, signature, timestamp string, nonce int64) map[string]string {
	return map[string]string{
		"POLY_ADDRESS":   address,
		"POLY_SIGNATURE": signature,
		"POLY_TIMESTAMP": timestamp,
		"POLY_NONCE":     strconv.FormatInt(nonce, 10),
	}
}
