// Package chain reads and writes value transfers on EVM networks.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// transferGas is the fixed gas limit of a plain value transfer.
const transferGas = 21000

// ErrNoSigner is returned by Transfer when no escrow key is configured.
var ErrNoSigner = errors.New("chain: no signing key configured")

// Transaction is the part of an on-chain transfer settlement cares about.
type Transaction struct {
	Hash       string
	Found      bool
	Pending    bool
	Failed     bool
	Sender     string
	Recipients []string
	ValueWei   *big.Int
	Block      uint64
}

// HasRecipient reports whether addr is among the recipients, ignoring case.
func (t *Transaction) HasRecipient(addr string) bool {
	for _, r := range t.Recipients {
		if strings.EqualFold(r, addr) {
			return true
		}
	}
	return false
}

// EVMClient talks to one EVM network over JSON-RPC.
type EVMClient struct {
	network string
	rpc     *ethclient.Client
	key     *ecdsa.PrivateKey
	from    common.Address
	logger  *zap.Logger

	// chainID is cached after the first successful eth_chainId call.
	chainMu sync.Mutex
	chainID *big.Int
}

// DialEVM connects to rpcURL. privateKeyHex may be empty for a read-only client.
func DialEVM(ctx context.Context, network, rpcURL, privateKeyHex string, logger *zap.Logger) (*EVMClient, error) {
	if strings.TrimSpace(rpcURL) == "" {
		return nil, fmt.Errorf("chain %s: rpc url is required", network)
	}
	rpc, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain %s: dial: %w", network, err)
	}
	c := &EVMClient{network: network, rpc: rpc, logger: logger}
	if strings.TrimSpace(privateKeyHex) != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
		if err != nil {
			rpc.Close()
			return nil, fmt.Errorf("chain %s: escrow key: %w", network, err)
		}
		c.key = key
		c.from = crypto.PubkeyToAddress(key.PublicKey)
	}
	return c, nil
}

// Network returns the configured network name.
func (c *EVMClient) Network() string {
	return c.network
}

// Close releases the RPC connection.
func (c *EVMClient) Close() {
	if c != nil && c.rpc != nil {
		c.rpc.Close()
	}
}

// LookupTransaction fetches a transaction and its receipt. An unknown hash
// yields Found=false rather than an error.
func (c *EVMClient) LookupTransaction(ctx context.Context, reference string) (*Transaction, error) {
	if !IsTxHash(reference) {
		return nil, fmt.Errorf("chain %s: malformed transaction hash %q", c.network, reference)
	}
	hash := common.HexToHash(reference)
	out := &Transaction{Hash: hash.Hex()}

	tx, pending, err := c.rpc.TransactionByHash(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chain %s: lookup %s: %w", c.network, hash.Hex(), err)
	}
	out.Found = true
	out.ValueWei = tx.Value()
	if to := tx.To(); to != nil {
		out.Recipients = []string{to.Hex()}
	}
	if sender, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx); err == nil {
		out.Sender = sender.Hex()
	} else {
		c.logger.Debug("unable to recover sender", zap.String("tx", hash.Hex()), zap.Error(err))
	}
	if pending {
		out.Pending = true
		return out, nil
	}

	receipt, err := c.rpc.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		out.Pending = true
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chain %s: receipt %s: %w", c.network, hash.Hex(), err)
	}
	out.Failed = receipt.Status != types.ReceiptStatusSuccessful
	if receipt.BlockNumber != nil {
		out.Block = receipt.BlockNumber.Uint64()
	}
	return out, nil
}

// Transfer signs and submits a plain value transfer from the escrow key.
func (c *EVMClient) Transfer(ctx context.Context, to string, amountWei *big.Int) (string, error) {
	if c.key == nil {
		return "", ErrNoSigner
	}
	if !common.IsHexAddress(to) {
		return "", fmt.Errorf("chain %s: invalid recipient %q", c.network, to)
	}
	if amountWei == nil || amountWei.Sign() <= 0 {
		return "", fmt.Errorf("chain %s: transfer amount must be positive", c.network)
	}
	chainID, err := c.networkID(ctx)
	if err != nil {
		return "", err
	}
	nonce, err := c.rpc.PendingNonceAt(ctx, c.from)
	if err != nil {
		return "", fmt.Errorf("chain %s: nonce: %w", c.network, err)
	}
	gasPrice, err := c.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("chain %s: gas price: %w", c.network, err)
	}
	recipient := common.HexToAddress(to)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &recipient,
		Value:    amountWei,
		Gas:      transferGas,
		GasPrice: gasPrice,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), c.key)
	if err != nil {
		return "", fmt.Errorf("chain %s: sign: %w", c.network, err)
	}
	if err := c.rpc.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("chain %s: send: %w", c.network, err)
	}
	c.logger.Info("transfer submitted",
		zap.String("network", c.network),
		zap.String("tx", signed.Hash().Hex()),
		zap.String("to", recipient.Hex()),
		zap.String("wei", amountWei.String()))
	return signed.Hash().Hex(), nil
}

func (c *EVMClient) networkID(ctx context.Context) (*big.Int, error) {
	c.chainMu.Lock()
	defer c.chainMu.Unlock()
	if c.chainID != nil {
		return c.chainID, nil
	}
	id, err := c.rpc.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain %s: chain id: %w", c.network, err)
	}
	c.chainID = id
	return id, nil
}

// IsTxHash reports whether s is a 0x-prefixed 32-byte hex string.
func IsTxHash(s string) bool {
	if len(s) != 66 || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, r := range s[2:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

// IsAddress reports whether s is a hex EVM address.
func IsAddress(s string) bool {
	return common.IsHexAddress(s)
}
