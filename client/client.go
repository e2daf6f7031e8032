package client

import (
	"context"
	"errors"
	"time"

	"github.com/caritasnetwork/Caritas/campaign"
	"github.com/caritasnetwork/Caritas/fileoperations"
	"github.com/caritasnetwork/Caritas/ledger"
	"github.com/caritasnetwork/Caritas/logger"
	"github.com/caritasnetwork/Caritas/mirror"
	"github.com/caritasnetwork/Caritas/natsclient"
	"github.com/caritasnetwork/Caritas/orchestrator"
	"github.com/caritasnetwork/Caritas/reactive"
	"github.com/caritasnetwork/Caritas/registry"
	"github.com/caritasnetwork/Caritas/store"
	"github.com/caritasnetwork/Caritas/wallet"
)

// Client is the application facade over the remote fundraising ledger.
// It wires the typed ledger boundary, the campaign registry, the donation
// mirror and the transaction orchestrator behind campaign level operations
// and is designed to serve as an easy way of building client applications
// that use the ledger gateway REST API.
type Client struct {
	rest     *ledger.Rest
	keeper   *WalletKeeper
	registry *registry.Registry
	mirror   *mirror.Mirror
	orch     *orchestrator.Orchestrator
	fo       fileoperations.Helper
	sub      *natsclient.Subscriber
	log      logger.Logger
}

// NewClient creates a new ledger client facade. The gateway API version is
// validated before anything else so a mismatched gateway fails fast.
func NewClient(
	ctx context.Context,
	ledgerCfg ledger.Config, orchCfg orchestrator.Config, registryCfg registry.Config,
	keeper *WalletKeeper, fo fileoperations.Helper, log logger.Logger,
) (*Client, error) {
	if err := ledgerCfg.Validate(); err != nil {
		return nil, err
	}

	rest := ledger.NewRest(ledgerCfg)
	if err := rest.ValidateApiVersion(ctx); err != nil {
		return nil, err
	}

	reg, err := registry.New(registryCfg, rest, log)
	if err != nil {
		return nil, err
	}

	mir := mirror.New(reg)

	orch, err := orchestrator.New(orchCfg, rest, keeper, wallet.NewVerifier(), reg, reg, mir, log)
	if err != nil {
		reg.Close()
		return nil, err
	}

	return &Client{
		rest:     rest,
		keeper:   keeper,
		registry: reg,
		mirror:   mir,
		orch:     orch,
		fo:       fo,
		log:      log,
	}, nil
}

// ConnectEventStream subscribes to the gateway event stream and refreshes
// the registry on every campaign event. Events are triggers only, the
// refreshed state always comes from a fresh ledger read.
func (c *Client) ConnectEventStream(ctx context.Context, cfg natsclient.Config) error {
	sub, err := natsclient.SubscriberConnect(cfg)
	if err != nil {
		return err
	}
	err = sub.SubscribeRefreshTriggers(func(campaignID uint64) {
		if err := c.registry.Refresh(ctx, campaignID); err != nil {
			c.log.Error("event triggered refresh failed, " + err.Error())
		}
	})
	if err != nil {
		if er := sub.Unsubscribe(); er != nil {
			err = errors.Join(err, er)
		}
		return err
	}
	c.sub = sub
	return nil
}

// CreateCampaign submits a new fundraising campaign to the ledger.
// The deadline is fixed at submission time from the given duration.
func (c *Client) CreateCampaign(
	ctx context.Context, title, description, beneficiary string,
	targetAmount, durationInDays uint64, t campaign.Type,
) (orchestrator.Handle, error) {
	p := ledger.CreateCampaignPayload{
		Title:          title,
		Description:    description,
		Beneficiary:    beneficiary,
		TargetAmount:   targetAmount,
		DurationInDays: durationInDays,
		Type:           t,
	}
	return c.orch.Submit(ctx, p.ActionKey(), p)
}

// Donate submits a donation to the campaign.
func (c *Client) Donate(ctx context.Context, campaignID, amount uint64) (orchestrator.Handle, error) {
	p := ledger.DonatePayload{CampaignID: campaignID, Amount: amount}
	return c.orch.Submit(ctx, p.ActionKey(), p)
}

// WithdrawFunds submits a beneficiary payout for a completed campaign.
func (c *Client) WithdrawFunds(ctx context.Context, campaignID uint64) (orchestrator.Handle, error) {
	p := ledger.WithdrawFundsPayload{CampaignID: campaignID}
	return c.orch.Submit(ctx, p.ActionKey(), p)
}

// RequestRefund submits a refund claim for the caller's donation to a failed campaign.
func (c *Client) RequestRefund(ctx context.Context, campaignID uint64) (orchestrator.Handle, error) {
	p := ledger.RequestRefundPayload{CampaignID: campaignID}
	return c.orch.Submit(ctx, p.ActionKey(), p)
}

// CancelCampaign submits a cancellation of an active campaign.
func (c *Client) CancelCampaign(ctx context.Context, campaignID uint64) (orchestrator.Handle, error) {
	p := ledger.CancelCampaignPayload{CampaignID: campaignID}
	return c.orch.Submit(ctx, p.ActionKey(), p)
}

// CheckStatus asks the ledger to recompute and persist the campaign status.
func (c *Client) CheckStatus(ctx context.Context, campaignID uint64) (orchestrator.Handle, error) {
	p := ledger.CheckStatusPayload{CampaignID: campaignID}
	return c.orch.Submit(ctx, p.ActionKey(), p)
}

// UpdatePlatformFee submits a platform fee change, rejected by the ledger
// unless the wallet is the platform owner.
func (c *Client) UpdatePlatformFee(ctx context.Context, feePercentage uint64) (orchestrator.Handle, error) {
	p := ledger.UpdatePlatformFeePayload{FeePercentage: feePercentage}
	return c.orch.Submit(ctx, p.ActionKey(), p)
}

// TransferOwnership submits a platform ownership transfer, rejected by the
// ledger unless the wallet is the platform owner.
func (c *Client) TransferOwnership(ctx context.Context, newOwner string) (orchestrator.Handle, error) {
	p := ledger.TransferOwnershipPayload{NewOwner: newOwner}
	return c.orch.Submit(ctx, p.ActionKey(), p)
}

// Await blocks until the submission behind the action key reaches a terminal state.
func (c *Client) Await(ctx context.Context, actionKey string) (orchestrator.Request, error) {
	return c.orch.Await(ctx, actionKey)
}

// RequestStatus reports the tracked state of the submission behind the action key.
func (c *Client) RequestStatus(actionKey string) (orchestrator.Request, bool) {
	return c.orch.Status(actionKey)
}

// Acknowledge clears a timed out submission so its action key accepts a new submit.
func (c *Client) Acknowledge(actionKey string) bool {
	return c.orch.Acknowledge(actionKey)
}

// Abandon stops tracking an awaiting submission.
func (c *Client) Abandon(actionKey string) bool {
	return c.orch.Abandon(actionKey)
}

// SubscribeRequests subscribes to submission state transitions.
func (c *Client) SubscribeRequests() *reactive.Subscriber[orchestrator.Request] {
	return c.orch.Subscribe()
}

// SubscribeCampaigns subscribes to campaign updates published on registry refreshes.
func (c *Client) SubscribeCampaigns() *reactive.Subscriber[registry.Update] {
	return c.registry.Subscribe()
}

// SyncCampaigns reads every campaign known to the ledger into the registry.
func (c *Client) SyncCampaigns(ctx context.Context) error {
	return c.registry.SyncAll(ctx)
}

// RefreshCampaign re-reads a single campaign from the ledger.
func (c *Client) RefreshCampaign(ctx context.Context, campaignID uint64) error {
	return c.registry.Refresh(ctx, campaignID)
}

// Campaign reads the cached campaign by id.
func (c *Client) Campaign(campaignID uint64) (campaign.Campaign, bool) {
	return c.registry.Get(campaignID)
}

// ListCampaigns lists all cached campaigns ordered by id.
func (c *Client) ListCampaigns() []campaign.Campaign {
	return c.registry.List()
}

// MyDonations lists the wallet's tracked confirmed donations ordered by campaign id.
func (c *Client) MyDonations() []campaign.DonationRecord {
	return c.mirror.Records(c.keeper.Address())
}

// EligibleForRefund checks if the wallet can reclaim its donation to the campaign.
func (c *Client) EligibleForRefund(campaignID uint64) bool {
	return c.mirror.EligibleForRefund(campaignID, c.keeper.Address())
}

// RebuildDonations replays the wallet's confirmed donations from ledger reads.
func (c *Client) RebuildDonations(ctx context.Context) error {
	if !c.keeper.Ready() {
		return ErrWalletNotReady
	}
	return c.mirror.Rebuild(ctx, c.rest, []string{c.keeper.Address()})
}

// IsOwner checks if the wallet is the platform owner.
func (c *Client) IsOwner(ctx context.Context) (bool, error) {
	if !c.keeper.Ready() {
		return false, ErrWalletNotReady
	}
	owner, err := c.rest.Owner(ctx)
	if err != nil {
		return false, err
	}
	return owner == c.keeper.Address(), nil
}

// ContractBalance reads the total balance held by the ledger contract.
func (c *Client) ContractBalance(ctx context.Context) (uint64, error) {
	return c.rest.ContractBalance(ctx)
}

// PlatformFeePercentage reads the current platform fee.
func (c *Client) PlatformFeePercentage(ctx context.Context) (uint64, error) {
	return c.rest.PlatformFeePercentage(ctx)
}

// SaveCampaignStore snapshots all cached campaigns into the local store file,
// merged with whatever another process persisted since the last read.
func (c *Client) SaveCampaignStore() error {
	book := store.NewBook()
	now := time.Now()
	for _, cm := range c.registry.List() {
		book.Upsert(store.NewRecord(cm, now))
	}
	return c.fo.SaveCampaignStore(book)
}

// ReadCampaignStore reads the persisted campaign records.
func (c *Client) ReadCampaignStore() ([]store.Record, error) {
	book, err := c.fo.ReadCampaignStore()
	if err != nil {
		return nil, err
	}
	return book.List(), nil
}

// Close tears the client down, flushing the wallet from memory and closing
// all subscriptions.
func (c *Client) Close() error {
	var err error
	if c.sub != nil {
		err = c.sub.Unsubscribe()
	}
	c.orch.Close()
	c.registry.Close()
	c.keeper.FlushWalletFromMemory()
	return err
}
