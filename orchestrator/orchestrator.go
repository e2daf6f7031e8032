package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/caritasnetwork/Caritas/campaign"
	"github.com/caritasnetwork/Caritas/ledger"
	"github.com/caritasnetwork/Caritas/logger"
	"github.com/caritasnetwork/Caritas/reactive"
	"github.com/caritasnetwork/Caritas/telemetry"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrConflict       = errors.New("conflicting request in flight")
	ErrSignerRejected = errors.New("signer rejected the submission")
	ErrNetwork        = errors.New("network failure")
	ErrLedgerReverted = errors.New("ledger reverted the transaction")
	ErrTimedOut       = errors.New("confirmation timed out")
	ErrUnknownRequest = errors.New("unknown action key")

	ErrConfirmTimeoutNotInRange = errors.New("confirm_timeout_seconds is not in range of [1 : 600]")
	ErrPollIntervalNotInRange   = errors.New("poll_interval_milliseconds is not in range of [10 : 10000]")
	ErrBufferNotInRange         = errors.New("subscription_buffer is not in range of [1 : 1000]")
)

// State is the submission lifecycle state of one action key.
type State uint8

const (
	StateIdle State = iota
	StateSubmitted
	StateAwaitingConfirmation
	StateConfirmed
	StateReverted
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitted:
		return "submitted"
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	case StateConfirmed:
		return "confirmed"
	case StateReverted:
		return "reverted"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Terminal checks if no further transition can happen for a request in that state.
// A timed out request is terminal for its submission attempt even though the
// underlying transaction may still confirm on the ledger later.
func (s State) Terminal() bool {
	switch s {
	case StateConfirmed, StateReverted, StateTimedOut:
		return true
	default:
		return false
	}
}

// Request tracks one submission attempt for an action key.
// RevertReason carries the ledger revert reason verbatim.
type Request struct {
	ActionKey    string
	Action       ledger.Action
	State        State
	Payload      ledger.Payload
	TxID         string
	CampaignID   uint64
	RevertReason string
	UpdatedAt    time.Time

	acked bool
}

// Handle references a successfully submitted transaction.
type Handle struct {
	ActionKey string
	TxID      string
}

// Signer authorizes ledger submissions. It is a single exclusive resource,
// the orchestrator never asks for two signatures at the same time.
// Sign returns an error when the signing party declines the authorization.
type Signer interface {
	Address() string
	Sign(message []byte) (digest [32]byte, signature []byte, err error)
}

// Refresher re-reads a campaign after a confirmed mutation.
type Refresher interface {
	Refresh(ctx context.Context, id uint64) error
}

// StatusReader reports the locally cached status of a campaign.
type StatusReader interface {
	CachedStatus(id uint64) (campaign.Status, bool)
}

// DonationRecorder mirrors confirmed donations and refunds.
type DonationRecorder interface {
	RecordConfirmedDonation(campaignID uint64, donor string, amount uint64)
	RecordConfirmedRefund(campaignID uint64, donor string)
}

// Config holds configuration of the Orchestrator.
type Config struct {
	ConfirmTimeoutSeconds    uint64 `yaml:"confirm_timeout_seconds"`
	PollIntervalMilliseconds uint64 `yaml:"poll_interval_milliseconds"`
	SubscriptionBuffer       int    `yaml:"subscription_buffer"`
}

// Validate validates the Orchestrator configuration.
func (c Config) Validate() error {
	if c.ConfirmTimeoutSeconds < 1 || c.ConfirmTimeoutSeconds > 600 {
		return ErrConfirmTimeoutNotInRange
	}
	if c.PollIntervalMilliseconds < 10 || c.PollIntervalMilliseconds > 10000 {
		return ErrPollIntervalNotInRange
	}
	if c.SubscriptionBuffer < 1 || c.SubscriptionBuffer > 1000 {
		return ErrBufferNotInRange
	}
	return nil
}

// Orchestrator owns the lifecycle of mutating ledger actions.
// Per action key it allows at most one request that has not reached a
// terminal state, and across all keys at most one submission awaits the
// signer at a time. It never resubmits on its own, a timed out request
// must be acknowledged by the caller before the key accepts a new submit.
type Orchestrator struct {
	mux        sync.Mutex
	cfg        Config
	client     ledger.Submitter
	signer     Signer
	validator  ledger.AddressValidator
	statuses   StatusReader
	refresher  Refresher
	recorder   DonationRecorder
	requests   map[string]*Request
	signerBusy bool
	obs        *reactive.Observable[Request]
	log        logger.Logger
	now        func() time.Time
}

// New creates a new Orchestrator. statuses, refresher and recorder may be nil,
// the corresponding pre-check and side effects are then skipped.
func New(
	cfg Config, client ledger.Submitter, signer Signer, validator ledger.AddressValidator,
	statuses StatusReader, refresher Refresher, recorder DonationRecorder, log logger.Logger,
) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{
		cfg:       cfg,
		client:    client,
		signer:    signer,
		validator: validator,
		statuses:  statuses,
		refresher: refresher,
		recorder:  recorder,
		requests:  make(map[string]*Request),
		obs:       reactive.New[Request](cfg.SubscriptionBuffer),
		log:       log,
		now:       time.Now,
	}, nil
}

// Submit validates the payload locally, signs its wire form and hands it to the ledger.
// The returned handle references the submitted transaction, confirmation is awaited
// in the background and observable through Subscribe, Status or Await.
func (o *Orchestrator) Submit(ctx context.Context, actionKey string, p ledger.Payload) (Handle, error) {
	if err := p.Validate(o.validator); err != nil {
		return Handle{}, errors.Join(ErrValidation, err)
	}
	if err := o.donatePreCheck(p); err != nil {
		return Handle{}, err
	}

	submittedAt := o.now()
	wire, err := p.Wire(submittedAt)
	if err != nil {
		return Handle{}, errors.Join(ErrValidation, err)
	}

	if err := o.admit(actionKey, p, submittedAt); err != nil {
		return Handle{}, err
	}
	o.obs.Publish(Request{ActionKey: actionKey, Action: p.Action(), State: StateSubmitted, Payload: p, UpdatedAt: submittedAt})

	env := ledger.Envelope{
		Address: o.signer.Address(),
		Action:  p.Action(),
		Payload: wire,
	}
	digest, signature, err := o.signer.Sign(wire)
	if err != nil {
		o.withdraw(actionKey)
		return Handle{}, errors.Join(ErrSignerRejected, err)
	}
	env.Hash = digest
	env.Signature = signature

	txID, err := o.client.Submit(ctx, env)
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionRejected) {
			o.finalize(actionKey, StateReverted, 0, err.Error())
			o.releaseSigner()
			telemetry.IncReverted()
			return Handle{ActionKey: actionKey}, errors.Join(ErrLedgerReverted, err)
		}
		o.withdraw(actionKey)
		return Handle{}, errors.Join(ErrNetwork, err)
	}

	o.mux.Lock()
	req := o.requests[actionKey]
	req.TxID = txID
	req.State = StateAwaitingConfirmation
	req.UpdatedAt = o.now()
	o.signerBusy = false
	snapshot := *req
	o.mux.Unlock()
	o.obs.Publish(snapshot)
	telemetry.IncSubmitted()
	o.log.Info(fmt.Sprintf("orchestrator: %s submitted as tx %s", actionKey, txID))

	go o.awaitConfirmation(actionKey, txID, p)

	return Handle{ActionKey: actionKey, TxID: txID}, nil
}

// Status returns the current request snapshot for the action key.
func (o *Orchestrator) Status(actionKey string) (Request, bool) {
	o.mux.Lock()
	defer o.mux.Unlock()
	req, ok := o.requests[actionKey]
	if !ok {
		return Request{}, false
	}
	return *req, true
}

// Await blocks until the request for the action key reaches a terminal state
// or the context is cancelled.
func (o *Orchestrator) Await(ctx context.Context, actionKey string) (Request, error) {
	sub := o.Subscribe()
	defer sub.Cancel()

	if req, ok := o.Status(actionKey); ok && req.State.Terminal() {
		return req, nil
	}

	for {
		select {
		case <-ctx.Done():
			return Request{}, ctx.Err()
		case req, ok := <-sub.Channel():
			if !ok {
				return Request{}, ErrUnknownRequest
			}
			if req.ActionKey == actionKey && req.State.Terminal() {
				return req, nil
			}
		}
	}
}

// Abandon stops observing a pending confirmation. The underlying transaction is
// never retracted, the action key is left timed out and must be acknowledged
// before a fresh submit.
func (o *Orchestrator) Abandon(actionKey string) bool {
	o.mux.Lock()
	req, ok := o.requests[actionKey]
	if !ok || req.State != StateAwaitingConfirmation {
		o.mux.Unlock()
		return false
	}
	req.State = StateTimedOut
	req.UpdatedAt = o.now()
	snapshot := *req
	o.mux.Unlock()
	o.obs.Publish(snapshot)
	telemetry.IncTimedOut()
	return true
}

// Acknowledge accepts the ambiguous outcome of a timed out request,
// unlocking the action key for a fresh submit.
func (o *Orchestrator) Acknowledge(actionKey string) bool {
	o.mux.Lock()
	defer o.mux.Unlock()
	req, ok := o.requests[actionKey]
	if !ok || req.State != StateTimedOut {
		return false
	}
	req.acked = true
	return true
}

// Subscribe subscribes to request state transitions. Cancel the subscriber when done.
func (o *Orchestrator) Subscribe() *reactive.Subscriber[Request] {
	return o.obs.Subscribe()
}

// Close tears the orchestrator down cancelling all subscriptions.
// Pending confirmations keep polling but are no longer observable.
func (o *Orchestrator) Close() {
	o.obs.Close()
}

func (o *Orchestrator) donatePreCheck(p ledger.Payload) error {
	dp, ok := p.(ledger.DonatePayload)
	if !ok || o.statuses == nil {
		return nil
	}
	// A campaign unknown to the cache does not block submission, the
	// ledger is authoritative and reverts a donation to a closed one.
	status, known := o.statuses.CachedStatus(dp.CampaignID)
	if known && status != campaign.StatusActive {
		return errors.Join(ErrValidation, fmt.Errorf("campaign %d is %s", dp.CampaignID, status))
	}
	return nil
}

func (o *Orchestrator) admit(actionKey string, p ledger.Payload, at time.Time) error {
	o.mux.Lock()
	defer o.mux.Unlock()
	if existing, ok := o.requests[actionKey]; ok {
		if !existing.State.Terminal() {
			return errors.Join(ErrConflict, fmt.Errorf("action %s is %s", actionKey, existing.State))
		}
		if existing.State == StateTimedOut && !existing.acked {
			return errors.Join(ErrConflict, fmt.Errorf("action %s timed out, acknowledge the uncertain outcome first", actionKey))
		}
	}
	if o.signerBusy {
		return errors.Join(ErrConflict, errors.New("signer is busy with another submission"))
	}
	o.signerBusy = true
	o.requests[actionKey] = &Request{
		ActionKey: actionKey,
		Action:    p.Action(),
		State:     StateSubmitted,
		Payload:   p,
		UpdatedAt: at,
	}
	return nil
}

// withdraw returns the action key to idle and frees the signer slot.
// Used when the attempt died before anything reached the ledger.
// Subscribers that observed the submitted snapshot receive an idle one,
// otherwise the attempt would end invisibly for them.
func (o *Orchestrator) withdraw(actionKey string) {
	o.mux.Lock()
	req, ok := o.requests[actionKey]
	if !ok {
		o.mux.Unlock()
		return
	}
	delete(o.requests, actionKey)
	o.signerBusy = false
	snapshot := *req
	o.mux.Unlock()

	snapshot.State = StateIdle
	snapshot.UpdatedAt = o.now()
	o.obs.Publish(snapshot)
}

func (o *Orchestrator) releaseSigner() {
	o.mux.Lock()
	defer o.mux.Unlock()
	o.signerBusy = false
}

func (o *Orchestrator) finalize(actionKey string, state State, campaignID uint64, revertReason string) {
	o.mux.Lock()
	req, ok := o.requests[actionKey]
	if !ok || req.State.Terminal() {
		o.mux.Unlock()
		return
	}
	req.State = state
	req.CampaignID = campaignID
	req.RevertReason = revertReason
	req.UpdatedAt = o.now()
	snapshot := *req
	o.mux.Unlock()
	o.obs.Publish(snapshot)
}

func (o *Orchestrator) awaitConfirmation(actionKey, txID string, p ledger.Payload) {
	timeout := time.Duration(o.cfg.ConfirmTimeoutSeconds) * time.Second
	interval := time.Duration(o.cfg.PollIntervalMilliseconds) * time.Millisecond
	deadline := o.now().Add(timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for o.now().Before(deadline) {
		if req, ok := o.Status(actionKey); !ok || req.State != StateAwaitingConfirmation {
			return
		}

		receipt, err := o.client.Receipt(ctx, txID)
		if err != nil {
			o.log.Warn(fmt.Sprintf("orchestrator: receipt poll for tx %s failed: %s", txID, err))
		} else {
			switch receipt.Status {
			case ledger.ReceiptConfirmed:
				o.finalize(actionKey, StateConfirmed, receipt.CampaignID, "")
				telemetry.IncConfirmed()
				o.applySideEffects(p, receipt)
				return
			case ledger.ReceiptReverted:
				o.finalize(actionKey, StateReverted, 0, receipt.RevertReason)
				telemetry.IncReverted()
				o.log.Warn(fmt.Sprintf("orchestrator: tx %s reverted: %s", txID, receipt.RevertReason))
				return
			}
		}

		<-ticker.C
	}

	// The outcome is ambiguous, the transaction may still confirm later.
	// Resubmitting here could double spend, only the caller may decide.
	o.finalize(actionKey, StateTimedOut, 0, "")
	telemetry.IncTimedOut()
	o.log.Warn(fmt.Sprintf("orchestrator: tx %s confirmation timed out", txID))
}

func (o *Orchestrator) applySideEffects(p ledger.Payload, receipt ledger.Receipt) {
	if o.recorder != nil {
		switch v := p.(type) {
		case ledger.DonatePayload:
			o.recorder.RecordConfirmedDonation(v.CampaignID, o.signer.Address(), v.Amount)
		case ledger.RequestRefundPayload:
			o.recorder.RecordConfirmedRefund(v.CampaignID, o.signer.Address())
		}
	}

	if o.refresher == nil {
		return
	}
	ids := p.CampaignIDs()
	if receipt.CampaignID != 0 {
		ids = append(ids, receipt.CampaignID)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(o.cfg.ConfirmTimeoutSeconds)*time.Second)
	defer cancel()
	for _, id := range ids {
		if err := o.refresher.Refresh(ctx, id); err != nil {
			o.log.Error(fmt.Sprintf("orchestrator: refresh of campaign %d failed: %s", id, err))
		}
	}
}
