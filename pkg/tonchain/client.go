// Package tonchain provides read/write access to the TON network: jetton
// wallet resolution, sequence number queries and transfer broadcasts.
package tonchain

import (
	"context"
	"time"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/stablepay-hq/payrunner/pkg/faults"
	"github.com/stablepay-hq/payrunner/pkg/keymanager"
	"github.com/stablepay-hq/payrunner/pkg/logger"
)

// messageTTL bounds how long a signed external message stays valid. Keeping it
// short limits the replay window if a broadcast outcome is unknown.
const messageTTL = 60 * time.Second

// API is the subset of the ton client used by the chain client.
type API interface {
	CurrentMasterchainInfo(ctx context.Context) (*ton.BlockIDExt, error)
	RunGetMethod(ctx context.Context, block *ton.BlockIDExt, addr *address.Address, method string, params ...any) (*ton.ExecutionResult, error)
	SendExternalMessage(ctx context.Context, msg *tlb.ExternalMessage) error
}

// Client talks to the TON network through a liteserver pool.
type Client struct {
	api         API
	logger      logger.Logger
	callTimeout time.Duration
}

// Connect builds a chain client from a liteserver network config URL.
func Connect(ctx context.Context, configURL string, callTimeout time.Duration, log logger.Logger) (*Client, error) {
	pool := liteclient.NewConnectionPool()
	if err := pool.AddConnectionsFromConfigUrl(ctx, configURL); err != nil {
		return nil, faults.Wrap(faults.ChainDispatch, err, "failed to connect to liteservers from %s", configURL)
	}
	api := ton.NewAPIClient(pool).WithRetry()
	return NewClient(api, callTimeout, log), nil
}

// NewClient wraps an existing ton API, mainly for tests.
func NewClient(api API, callTimeout time.Duration, log logger.Logger) *Client {
	return &Client{
		api:         api,
		logger:      log,
		callTimeout: callTimeout,
	}
}

// ResolveJettonWallet returns the owner's token-specific sub-account address
// for the given jetton master. Called once per run.
func (c *Client) ResolveJettonWallet(ctx context.Context, master, owner *address.Address) (*address.Address, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	block, err := c.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, faults.Wrap(faults.ChainDispatch, err, "failed to get masterchain info")
	}

	ownerSlice := cell.BeginCell().MustStoreAddr(owner).EndCell().BeginParse()
	res, err := c.api.RunGetMethod(ctx, block, master, "get_wallet_address", ownerSlice)
	if err != nil {
		return nil, faults.Wrap(faults.ChainDispatch, err, "get_wallet_address failed on jetton master %s", master.String())
	}

	slice, err := res.Slice(0)
	if err != nil {
		return nil, faults.Wrap(faults.ChainDispatch, err, "unexpected get_wallet_address result")
	}
	jettonWallet, err := slice.LoadAddr()
	if err != nil {
		return nil, faults.Wrap(faults.ChainDispatch, err, "malformed jetton wallet address")
	}

	c.logger.InfoWith(logger.Chain, "resolved jetton wallet %s for owner %s", jettonWallet.String(), owner.String())
	return jettonWallet, nil
}

// Seqno returns the account's current outgoing-message counter. Called once
// per run; the dispatcher advances its own copy afterwards.
func (c *Client) Seqno(ctx context.Context, account *address.Address) (uint32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	block, err := c.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return 0, faults.Wrap(faults.ChainDispatch, err, "failed to get masterchain info")
	}

	res, err := c.api.RunGetMethod(ctx, block, account, "seqno")
	if err != nil {
		return 0, faults.Wrap(faults.ChainDispatch, err, "seqno query failed for %s", account.String())
	}
	seqno, err := res.Int(0)
	if err != nil {
		return 0, faults.Wrap(faults.ChainDispatch, err, "unexpected seqno result")
	}
	return uint32(seqno.Uint64()), nil
}

// SendJettonTransfer signs and broadcasts a single transfer at the given
// sequence number. Successful submission means accepted by the node, not
// confirmed on chain.
func (c *Client) SendJettonTransfer(ctx context.Context, signer *keymanager.Signer, seqno uint32,
	jettonWallet *address.Address, attach tlb.Coins, body *cell.Cell) error {
	ext, err := BuildExternalMessage(signer, seqno, time.Now().Add(messageTTL), jettonWallet, attach, body)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	if err := c.api.SendExternalMessage(ctx, ext); err != nil {
		return faults.Wrap(faults.ChainDispatch, err, "broadcast rejected at seqno %d", seqno)
	}
	c.logger.DebugWith(logger.Chain, "broadcast accepted at seqno %d", seqno)
	return nil
}
