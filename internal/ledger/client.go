// Package ledger is the thin adapter over the CraftAnchor contract:
// anchor(bytes32,string) and isAnchored(bytes32). Retry policy lives with the
// caller; every failure carries a Kind so the batcher can decide.
package ledger

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"craftid/backend/internal/config"
	"craftid/backend/internal/secrets"
)

// Minimal CraftAnchor ABI: the two methods the pipeline relies on.
const anchorABI = `[
	{
		"inputs":[{"internalType":"bytes32","name":"h","type":"bytes32"},{"internalType":"string","name":"publicId","type":"string"}],
		"name":"anchor",
		"outputs":[],
		"stateMutability":"nonpayable",
		"type":"function"
	},
	{
		"inputs":[{"internalType":"bytes32","name":"h","type":"bytes32"}],
		"name":"isAnchored",
		"outputs":[{"internalType":"bool","name":"","type":"bool"},{"internalType":"uint256","name":"","type":"uint256"}],
		"stateMutability":"view",
		"type":"function"
	}
]`

const receiptPollInterval = 2 * time.Second

type Client struct {
	log *zap.Logger

	eth      *ethclient.Client
	chainID  *big.Int
	contract *bind.BoundContract
	address  common.Address
	key      *ecdsa.PrivateKey
	from     common.Address
	gasLimit uint64
}

// New dials the RPC endpoint and loads the anchorer key. Missing or
// unreadable material aborts startup; key bytes and references never appear
// in errors or logs.
func New(logger *zap.Logger, cfg config.Config, src secrets.Source) (*Client, error) {
	if cfg.Web3RPCURL == "" || cfg.AnchorContractAddress == "" {
		return nil, errors.New("ledger required: set WEB3_RPC_URL and ANCHOR_CONTRACT_ADDRESS")
	}
	eth, err := ethclient.Dial(cfg.Web3RPCURL)
	if err != nil {
		return nil, err
	}

	keyMaterial, err := src.Read(cfg.AnchorerPrivateKey)
	if err != nil {
		return nil, err
	}
	keyHex := strings.TrimSpace(string(keyMaterial))
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return nil, errors.New("anchorer private key material is not a valid hex key")
	}

	parsed, err := abi.JSON(strings.NewReader(anchorABI))
	if err != nil {
		return nil, err
	}
	addr := common.HexToAddress(cfg.AnchorContractAddress)

	return &Client{
		log:      logger,
		eth:      eth,
		chainID:  big.NewInt(cfg.ChainID),
		contract: bind.NewBoundContract(addr, parsed, eth, eth, eth),
		address:  addr,
		key:      key,
		from:     ethcrypto.PubkeyToAddress(key.PublicKey),
		gasLimit: cfg.Web3GasLimit,
	}, nil
}

// ToBytes32 converts a 64-hex hash (with or without 0x, left-padded if short)
// into the contract's bytes32 key.
func ToBytes32(hashHex string) ([32]byte, error) {
	var out [32]byte
	h := strings.TrimPrefix(strings.TrimSpace(hashHex), "0x")
	if len(h) == 0 || len(h) > 64 {
		return out, newError(KindInvalidInput, "hash must be at most 64 hex chars", nil)
	}
	if len(h) < 64 {
		h = strings.Repeat("0", 64-len(h)) + h
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return out, newError(KindInvalidInput, "hash is not valid hex", err)
	}
	copy(out[:], b)
	return out, nil
}

// Anchor invokes anchor(h, publicId). Nonce is fetched fresh per call
// (single-writer assumption); gas is the static configured ceiling. With
// waitForReceipt it polls every 2s until mined, reverted, or timeout.
func (c *Client) Anchor(ctx context.Context, hashHex, publicID string, waitForReceipt bool, timeout time.Duration) (string, error) {
	h, err := ToBytes32(hashHex)
	if err != nil {
		return "", err
	}

	nonce, err := c.eth.PendingNonceAt(ctx, c.from)
	if err != nil {
		return "", newError(KindTransport, "fetch nonce", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return "", newError(KindTransport, "suggest gas price", err)
	}

	auth, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return "", newError(KindInvalidInput, "build transactor", err)
	}
	auth.Context = ctx
	auth.Nonce = big.NewInt(int64(nonce))
	auth.Value = big.NewInt(0)
	auth.GasPrice = gasPrice
	auth.GasLimit = c.gasLimit

	tx, err := c.contract.Transact(auth, "anchor", h, publicID)
	if err != nil {
		return "", newError(KindTransport, "send anchor tx", err)
	}
	txHash := tx.Hash().Hex()
	c.log.Info("anchor tx sent", zap.String("public_id", publicID), zap.String("tx_hash", txHash))

	if !waitForReceipt {
		return txHash, nil
	}
	return c.waitReceipt(ctx, tx.Hash(), txHash, timeout)
}

func (c *Client) waitReceipt(ctx context.Context, h common.Hash, txHash string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		rec, err := c.eth.TransactionReceipt(ctx, h)
		switch {
		case err == nil && rec != nil:
			if rec.Status == 1 {
				return txHash, nil
			}
			return txHash, newError(KindTxRejected, "tx reverted (receipt status 0)", nil)
		case errors.Is(err, ethereum.NotFound):
			// still pending
		case err != nil:
			return txHash, newError(KindTransport, "fetch receipt", err)
		}

		if time.Now().After(deadline) {
			return txHash, newError(KindReceiptTimeout, "tx receipt timeout", nil)
		}
		select {
		case <-ctx.Done():
			return txHash, newError(KindReceiptTimeout, "receipt wait cancelled", ctx.Err())
		case <-ticker.C:
		}
	}
}

// IsAnchored is the pure view call: whether the key is recorded and the unix
// timestamp of its first anchor.
func (c *Client) IsAnchored(ctx context.Context, hashHex string) (bool, uint64, error) {
	h, err := ToBytes32(hashHex)
	if err != nil {
		return false, 0, err
	}
	var out []any
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "isAnchored", h); err != nil {
		return false, 0, newError(KindTransport, "isAnchored call", err)
	}
	if len(out) != 2 {
		return false, 0, newError(KindTransport, "isAnchored returned unexpected arity", nil)
	}
	anchored, ok := out[0].(bool)
	if !ok {
		return false, 0, newError(KindTransport, "isAnchored returned non-bool", nil)
	}
	ts, ok := out[1].(*big.Int)
	if !ok {
		return false, 0, newError(KindTransport, "isAnchored returned non-uint256", nil)
	}
	return anchored, ts.Uint64(), nil
}
