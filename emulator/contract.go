package emulator

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pterm/pterm"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/caritasnetwork/Caritas/campaign"
	"github.com/caritasnetwork/Caritas/ledger"
	"github.com/caritasnetwork/Caritas/wallet"
)

// Revert reasons mirror the wording of the on-ledger contract so clients
// exercising the emulator observe the same verbatim strings.
const (
	reasonNotActive        = "campaign is not active"
	reasonNotCompleted     = "campaign is not completed"
	reasonNotFailed        = "campaign did not fail"
	reasonNotFound         = "campaign not found"
	reasonOnlyCreator      = "only creator can perform this action"
	reasonOnlyOwner        = "only owner can perform this action"
	reasonAlreadyWithdrawn = "funds already withdrawn"
	reasonNothingToRefund  = "nothing to refund"
	reasonFeeTooHigh       = "fee percentage exceeds maximum"
	reasonBadPayload       = "malformed payload"
	reasonBadSignature     = "invalid envelope signature"
	reasonUnknownAction    = "unknown action"
)

const maxFeePercentage = 10

// EventPublisher receives contract events as they are produced.
// A nil publisher silently drops them.
type EventPublisher interface {
	PublishCampaignCreated(e ledger.CampaignCreatedEvent) error
	PublishDonationMade(e ledger.DonationMadeEvent) error
	PublishFundsWithdrawn(e ledger.FundsWithdrawnEvent) error
	PublishCampaignStatusChanged(e ledger.CampaignStatusChangedEvent) error
	PublishRefundMade(e ledger.RefundMadeEvent) error
}

type pendingReceipt struct {
	receipt ledger.Receipt
	readyAt time.Time
}

// contract executes transactions against in memory state. State changes
// apply on acceptance, receipts stay pending until the finality delay has
// passed so clients exercise their confirmation polling.
type contract struct {
	mux       sync.Mutex
	verifier  wallet.Helper
	pub       EventPublisher
	campaigns map[uint64]*campaign.Campaign
	donations map[uint64]map[string]uint64
	receipts  map[string]pendingReceipt
	counter   uint64
	balance   uint64
	feePct    uint64
	owner     string
	finality  time.Duration
	verify    bool
}

func newContract(cfg Config, verifier wallet.Helper, pub EventPublisher) *contract {
	return &contract{
		verifier:  verifier,
		pub:       pub,
		campaigns: make(map[uint64]*campaign.Campaign),
		donations: make(map[uint64]map[string]uint64),
		receipts:  make(map[string]pendingReceipt),
		feePct:    cfg.FeePercentage,
		owner:     cfg.Owner,
		finality:  time.Duration(cfg.FinalityMillis) * time.Millisecond,
		verify:    cfg.VerifySignature,
	}
}

// submit executes the envelope and registers its receipt. The returned
// transaction id is valid regardless of the execution outcome.
func (c *contract) submit(e ledger.Envelope) (string, error) {
	c.mux.Lock()
	defer c.mux.Unlock()

	if c.verify {
		if err := c.verifier.Verify(e.Payload, e.Signature, e.Hash, e.Address); err != nil {
			return "", fmt.Errorf("%s, %w", reasonBadSignature, err)
		}
	}

	txID := primitive.NewObjectID().Hex()
	receipt := ledger.Receipt{TxID: txID, Status: ledger.ReceiptConfirmed}

	campaignID, reason := c.execute(e)
	if reason != "" {
		receipt.Status = ledger.ReceiptReverted
		receipt.RevertReason = reason
	}
	receipt.CampaignID = campaignID

	c.receipts[txID] = pendingReceipt{receipt: receipt, readyAt: time.Now().Add(c.finality)}
	return txID, nil
}

// receipt reports the outcome of a transaction, pending until finality.
func (c *contract) receipt(txID string) (ledger.Receipt, bool) {
	c.mux.Lock()
	defer c.mux.Unlock()
	p, ok := c.receipts[txID]
	if !ok {
		return ledger.Receipt{}, false
	}
	if time.Now().Before(p.readyAt) {
		return ledger.Receipt{TxID: txID, Status: ledger.ReceiptPending}, true
	}
	return p.receipt, true
}

// execute dispatches the action, it returns the campaign id the transaction
// touched and an empty reason on success.
func (c *contract) execute(e ledger.Envelope) (uint64, string) {
	switch e.Action {
	case ledger.ActionCreateCampaign:
		return c.createCampaign(e)
	case ledger.ActionDonate:
		return c.donate(e)
	case ledger.ActionWithdrawFunds:
		return c.withdrawFunds(e)
	case ledger.ActionRequestRefund:
		return c.requestRefund(e)
	case ledger.ActionCancelCampaign:
		return c.cancelCampaign(e)
	case ledger.ActionCheckStatus:
		return c.checkStatus(e)
	case ledger.ActionUpdatePlatformFee:
		return c.updatePlatformFee(e)
	case ledger.ActionTransferOwnership:
		return c.transferOwnership(e)
	default:
		return 0, reasonUnknownAction
	}
}

func (c *contract) createCampaign(e ledger.Envelope) (uint64, string) {
	var call ledger.CreateCampaignCall
	if err := json.Unmarshal(e.Payload, &call); err != nil {
		return 0, reasonBadPayload
	}
	if call.Title == "" || call.TargetAmount == 0 || !call.Type.Valid() {
		return 0, reasonBadPayload
	}
	if !c.verifier.IsValidAddress(call.Beneficiary) {
		return 0, reasonBadPayload
	}

	c.counter++
	cm := &campaign.Campaign{
		ID:           c.counter,
		Title:        call.Title,
		Description:  call.Description,
		Creator:      e.Address,
		Beneficiary:  call.Beneficiary,
		TargetAmount: call.TargetAmount,
		Deadline:     call.Deadline,
		Type:         call.Type,
		Status:       campaign.StatusActive,
	}
	c.campaigns[cm.ID] = cm
	c.donations[cm.ID] = make(map[string]uint64)

	c.publishEvent(func(p EventPublisher) error {
		return p.PublishCampaignCreated(ledger.CampaignCreatedEvent{
			CampaignID:   cm.ID,
			Creator:      cm.Creator,
			Beneficiary:  cm.Beneficiary,
			Title:        cm.Title,
			TargetAmount: cm.TargetAmount,
			Deadline:     cm.Deadline,
			Type:         cm.Type,
		})
	})
	return cm.ID, ""
}

func (c *contract) donate(e ledger.Envelope) (uint64, string) {
	var call ledger.DonateCall
	if err := json.Unmarshal(e.Payload, &call); err != nil {
		return 0, reasonBadPayload
	}
	if call.Amount == 0 {
		return call.CampaignID, reasonBadPayload
	}
	cm, ok := c.campaigns[call.CampaignID]
	if !ok {
		return call.CampaignID, reasonNotFound
	}
	c.settleStatus(cm)
	if cm.Status != campaign.StatusActive {
		return cm.ID, reasonNotActive
	}

	cm.RaisedAmount += call.Amount
	c.donations[cm.ID][e.Address] += call.Amount
	c.balance += call.Amount

	c.publishEvent(func(p EventPublisher) error {
		return p.PublishDonationMade(ledger.DonationMadeEvent{
			CampaignID:  cm.ID,
			Donor:       e.Address,
			Amount:      call.Amount,
			TotalRaised: cm.RaisedAmount,
		})
	})

	c.settleStatus(cm)
	return cm.ID, ""
}

func (c *contract) withdrawFunds(e ledger.Envelope) (uint64, string) {
	var call ledger.CampaignCall
	if err := json.Unmarshal(e.Payload, &call); err != nil {
		return 0, reasonBadPayload
	}
	cm, ok := c.campaigns[call.CampaignID]
	if !ok {
		return call.CampaignID, reasonNotFound
	}
	if cm.Creator != e.Address {
		return cm.ID, reasonOnlyCreator
	}
	c.settleStatus(cm)
	if cm.Status != campaign.StatusCompleted {
		return cm.ID, reasonNotCompleted
	}
	if cm.FundsWithdrawn {
		return cm.ID, reasonAlreadyWithdrawn
	}

	fee := cm.RaisedAmount * c.feePct / 100
	payout := cm.RaisedAmount - fee
	cm.FundsWithdrawn = true
	c.balance -= payout

	c.publishEvent(func(p EventPublisher) error {
		return p.PublishFundsWithdrawn(ledger.FundsWithdrawnEvent{
			CampaignID:  cm.ID,
			Beneficiary: cm.Beneficiary,
			Amount:      payout,
			PlatformFee: fee,
		})
	})
	return cm.ID, ""
}

func (c *contract) requestRefund(e ledger.Envelope) (uint64, string) {
	var call ledger.CampaignCall
	if err := json.Unmarshal(e.Payload, &call); err != nil {
		return 0, reasonBadPayload
	}
	cm, ok := c.campaigns[call.CampaignID]
	if !ok {
		return call.CampaignID, reasonNotFound
	}
	c.settleStatus(cm)
	if cm.Status != campaign.StatusFailed {
		return cm.ID, reasonNotFailed
	}
	amount := c.donations[cm.ID][e.Address]
	if amount == 0 {
		return cm.ID, reasonNothingToRefund
	}

	delete(c.donations[cm.ID], e.Address)
	cm.RaisedAmount -= amount
	c.balance -= amount

	c.publishEvent(func(p EventPublisher) error {
		return p.PublishRefundMade(ledger.RefundMadeEvent{
			CampaignID: cm.ID,
			Donor:      e.Address,
			Amount:     amount,
		})
	})
	return cm.ID, ""
}

func (c *contract) cancelCampaign(e ledger.Envelope) (uint64, string) {
	var call ledger.CampaignCall
	if err := json.Unmarshal(e.Payload, &call); err != nil {
		return 0, reasonBadPayload
	}
	cm, ok := c.campaigns[call.CampaignID]
	if !ok {
		return call.CampaignID, reasonNotFound
	}
	if cm.Creator != e.Address {
		return cm.ID, reasonOnlyCreator
	}
	c.settleStatus(cm)
	if cm.Status != campaign.StatusActive {
		return cm.ID, reasonNotActive
	}

	c.transition(cm, campaign.StatusCancelled)
	return cm.ID, ""
}

func (c *contract) checkStatus(e ledger.Envelope) (uint64, string) {
	var call ledger.CampaignCall
	if err := json.Unmarshal(e.Payload, &call); err != nil {
		return 0, reasonBadPayload
	}
	cm, ok := c.campaigns[call.CampaignID]
	if !ok {
		return call.CampaignID, reasonNotFound
	}
	c.settleStatus(cm)
	return cm.ID, ""
}

func (c *contract) updatePlatformFee(e ledger.Envelope) (uint64, string) {
	var call ledger.UpdatePlatformFeeCall
	if err := json.Unmarshal(e.Payload, &call); err != nil {
		return 0, reasonBadPayload
	}
	if e.Address != c.owner {
		return 0, reasonOnlyOwner
	}
	if call.FeePercentage > maxFeePercentage {
		return 0, reasonFeeTooHigh
	}
	c.feePct = call.FeePercentage
	return 0, ""
}

func (c *contract) transferOwnership(e ledger.Envelope) (uint64, string) {
	var call ledger.TransferOwnershipCall
	if err := json.Unmarshal(e.Payload, &call); err != nil {
		return 0, reasonBadPayload
	}
	if e.Address != c.owner {
		return 0, reasonOnlyOwner
	}
	if !c.verifier.IsValidAddress(call.NewOwner) {
		return 0, reasonBadPayload
	}
	c.owner = call.NewOwner
	return 0, ""
}

// settleStatus recomputes and persists the campaign status, publishing
// a status change event on a transition.
func (c *contract) settleStatus(cm *campaign.Campaign) {
	derived := cm.Derive(time.Now())
	if derived != cm.Status {
		c.transition(cm, derived)
	}
}

func (c *contract) transition(cm *campaign.Campaign, next campaign.Status) {
	old := cm.Status
	cm.Status = next
	c.publishEvent(func(p EventPublisher) error {
		return p.PublishCampaignStatusChanged(ledger.CampaignStatusChangedEvent{
			CampaignID: cm.ID,
			OldStatus:  old,
			NewStatus:  next,
		})
	})
}

func (c *contract) publishEvent(publish func(p EventPublisher) error) {
	if c.pub == nil {
		return
	}
	if err := publish(c.pub); err != nil {
		pterm.Warning.Printf("Event dropped, %s\n", err)
	}
}

func (c *contract) campaignInfo(id uint64) (campaign.Campaign, bool) {
	c.mux.Lock()
	defer c.mux.Unlock()
	cm, ok := c.campaigns[id]
	if !ok {
		return campaign.Campaign{}, false
	}
	return *cm, true
}

func (c *contract) donationAmount(id uint64, donor string) (uint64, bool) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if _, ok := c.campaigns[id]; !ok {
		return 0, false
	}
	return c.donations[id][donor], true
}

func (c *contract) totals() (campaigns, balance, feePct uint64, owner string) {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.counter, c.balance, c.feePct, c.owner
}
