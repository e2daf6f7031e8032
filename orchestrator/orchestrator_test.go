package orchestrator

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/caritasnetwork/Caritas/campaign"
	"github.com/caritasnetwork/Caritas/ledger"
)

type loggerMock struct{}

func (l loggerMock) Debug(_ string) {}
func (l loggerMock) Info(_ string)  {}
func (l loggerMock) Warn(_ string)  {}
func (l loggerMock) Error(_ string) {}
func (l loggerMock) Fatal(_ string) {}

type signerMock struct {
	mux     sync.Mutex
	address string
	reject  bool
	gate    chan struct{}
	signs   int
}

func (s *signerMock) Address() string { return s.address }

func (s *signerMock) Sign(message []byte) ([32]byte, []byte, error) {
	if s.gate != nil {
		<-s.gate
	}
	s.mux.Lock()
	s.signs++
	reject := s.reject
	s.mux.Unlock()
	if reject {
		return [32]byte{}, nil, errors.New("declined by user")
	}
	return sha256.Sum256(message), []byte("signature"), nil
}

type submitterMock struct {
	mux       sync.Mutex
	submitErr error
	submits   int
	receipts  map[string]ledger.Receipt
}

func (s *submitterMock) Submit(_ context.Context, _ ledger.Envelope) (string, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.submitErr != nil {
		return "", s.submitErr
	}
	s.submits++
	return "tx-1", nil
}

func (s *submitterMock) Receipt(_ context.Context, txID string) (ledger.Receipt, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	r, ok := s.receipts[txID]
	if !ok {
		return ledger.Receipt{}, ledger.ErrTransactionNotFound
	}
	return r, nil
}

func (s *submitterMock) setReceipt(txID string, r ledger.Receipt) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.receipts == nil {
		s.receipts = make(map[string]ledger.Receipt)
	}
	s.receipts[txID] = r
}

type validatorMock struct{}

func (v validatorMock) IsValidAddress(address string) bool { return address != "" && address != "bad" }

type statusesMock struct {
	statuses map[uint64]campaign.Status
}

func (s statusesMock) CachedStatus(id uint64) (campaign.Status, bool) {
	st, ok := s.statuses[id]
	return st, ok
}

type refresherMock struct {
	mux sync.Mutex
	ids []uint64
}

func (r *refresherMock) Refresh(_ context.Context, id uint64) error {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.ids = append(r.ids, id)
	return nil
}

func (r *refresherMock) refreshed() []uint64 {
	r.mux.Lock()
	defer r.mux.Unlock()
	return append([]uint64(nil), r.ids...)
}

type recorderMock struct {
	mux       sync.Mutex
	donations []campaign.DonationRecord
	refunds   []uint64
}

func (r *recorderMock) RecordConfirmedDonation(id uint64, donor string, amount uint64) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.donations = append(r.donations, campaign.DonationRecord{CampaignID: id, Donor: donor, Amount: amount})
}

func (r *recorderMock) RecordConfirmedRefund(id uint64, _ string) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.refunds = append(r.refunds, id)
}

func fastConfig() Config {
	return Config{ConfirmTimeoutSeconds: 1, PollIntervalMilliseconds: 10, SubscriptionBuffer: 100}
}

func newTestOrchestrator(
	t *testing.T, client ledger.Submitter, signer Signer,
	statuses StatusReader, refresher Refresher, recorder DonationRecorder,
) *Orchestrator {
	o, err := New(fastConfig(), client, signer, validatorMock{}, statuses, refresher, recorder, loggerMock{})
	assert.Nil(t, err)
	return o
}

func TestConfigValidate(t *testing.T) {
	assert.Nil(t, fastConfig().Validate())
	assert.ErrorIs(t, Config{PollIntervalMilliseconds: 10, SubscriptionBuffer: 1}.Validate(), ErrConfirmTimeoutNotInRange)
	assert.ErrorIs(t, Config{ConfirmTimeoutSeconds: 1, SubscriptionBuffer: 1}.Validate(), ErrPollIntervalNotInRange)
	assert.ErrorIs(t, Config{ConfirmTimeoutSeconds: 1, PollIntervalMilliseconds: 10}.Validate(), ErrBufferNotInRange)
}

func TestValidationFailsBeforeLedger(t *testing.T) {
	client := &submitterMock{}
	o := newTestOrchestrator(t, client, &signerMock{address: "donor"}, nil, nil, nil)

	p := ledger.DonatePayload{CampaignID: 1, Amount: 0}
	_, err := o.Submit(context.Background(), p.ActionKey(), p)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 0, client.submits)

	_, ok := o.Status(p.ActionKey())
	assert.False(t, ok)
}

func TestDonatePreCheckUsesCachedStatus(t *testing.T) {
	client := &submitterMock{}
	client.setReceipt("tx-1", ledger.Receipt{TxID: "tx-1", Status: ledger.ReceiptConfirmed})
	statuses := statusesMock{statuses: map[uint64]campaign.Status{
		1: campaign.StatusFailed,
		2: campaign.StatusActive,
	}}
	o := newTestOrchestrator(t, client, &signerMock{address: "donor"}, statuses, nil, nil)

	p := ledger.DonatePayload{CampaignID: 1, Amount: 10}
	_, err := o.Submit(context.Background(), p.ActionKey(), p)
	assert.ErrorIs(t, err, ErrValidation)

	// An actively cached campaign passes, and so does one the cache
	// has never seen, the ledger is authoritative for the latter.
	p = ledger.DonatePayload{CampaignID: 2, Amount: 10}
	_, err = o.Submit(context.Background(), p.ActionKey(), p)
	assert.Nil(t, err)

	p = ledger.DonatePayload{CampaignID: 99, Amount: 10}
	_, err = o.Submit(context.Background(), p.ActionKey(), p)
	assert.Nil(t, err)
}

func TestConflictOnSecondSubmitSameKey(t *testing.T) {
	client := &submitterMock{} // receipts stay pending, the request never terminates
	client.setReceipt("tx-1", ledger.Receipt{TxID: "tx-1", Status: ledger.ReceiptPending})
	o := newTestOrchestrator(t, client, &signerMock{address: "donor"}, nil, nil, nil)

	p := ledger.DonatePayload{CampaignID: 1, Amount: 10}
	_, err := o.Submit(context.Background(), p.ActionKey(), p)
	assert.Nil(t, err)

	_, err = o.Submit(context.Background(), p.ActionKey(), p)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestFreshSubmitAcceptedAfterConfirmed(t *testing.T) {
	client := &submitterMock{}
	client.setReceipt("tx-1", ledger.Receipt{TxID: "tx-1", Status: ledger.ReceiptConfirmed})
	o := newTestOrchestrator(t, client, &signerMock{address: "donor"}, nil, nil, nil)

	p := ledger.DonatePayload{CampaignID: 1, Amount: 10}
	_, err := o.Submit(context.Background(), p.ActionKey(), p)
	assert.Nil(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := o.Await(ctx, p.ActionKey())
	assert.Nil(t, err)
	assert.Equal(t, StateConfirmed, req.State)

	_, err = o.Submit(context.Background(), p.ActionKey(), p)
	assert.Nil(t, err)
}

func TestSignerRejectedReturnsKeyToIdle(t *testing.T) {
	client := &submitterMock{}
	client.setReceipt("tx-1", ledger.Receipt{TxID: "tx-1", Status: ledger.ReceiptConfirmed})
	signer := &signerMock{address: "donor", reject: true}
	o := newTestOrchestrator(t, client, signer, nil, nil, nil)

	p := ledger.DonatePayload{CampaignID: 1, Amount: 10}
	_, err := o.Submit(context.Background(), p.ActionKey(), p)
	assert.ErrorIs(t, err, ErrSignerRejected)

	_, ok := o.Status(p.ActionKey())
	assert.False(t, ok)

	// The signer slot is free again and the key accepts a fresh attempt.
	signer.mux.Lock()
	signer.reject = false
	signer.mux.Unlock()
	_, err = o.Submit(context.Background(), p.ActionKey(), p)
	assert.Nil(t, err)
}

func TestSignerRejectionVisibleToSubscribers(t *testing.T) {
	client := &submitterMock{}
	signer := &signerMock{address: "donor", reject: true}
	o := newTestOrchestrator(t, client, signer, nil, nil, nil)

	sub := o.Subscribe()
	defer sub.Cancel()

	p := ledger.DonatePayload{CampaignID: 1, Amount: 10}
	_, err := o.Submit(context.Background(), p.ActionKey(), p)
	assert.ErrorIs(t, err, ErrSignerRejected)

	// The attempt ends visibly, submitted first and idle after the rejection.
	first := <-sub.Channel()
	assert.Equal(t, p.ActionKey(), first.ActionKey)
	assert.Equal(t, StateSubmitted, first.State)

	second := <-sub.Channel()
	assert.Equal(t, p.ActionKey(), second.ActionKey)
	assert.Equal(t, StateIdle, second.State)
}

func TestSignerSlotIsExclusive(t *testing.T) {
	client := &submitterMock{}
	client.setReceipt("tx-1", ledger.Receipt{TxID: "tx-1", Status: ledger.ReceiptConfirmed})
	signer := &signerMock{address: "donor", gate: make(chan struct{})}
	o := newTestOrchestrator(t, client, signer, nil, nil, nil)

	first := ledger.DonatePayload{CampaignID: 1, Amount: 10}
	firstDone := make(chan error)
	go func() {
		_, err := o.Submit(context.Background(), first.ActionKey(), first)
		firstDone <- err
	}()

	// Wait for the first submission to hold the signer slot.
	assert.Eventually(t, func() bool {
		_, ok := o.Status(first.ActionKey())
		return ok
	}, time.Second, 5*time.Millisecond)

	second := ledger.DonatePayload{CampaignID: 2, Amount: 10}
	_, err := o.Submit(context.Background(), second.ActionKey(), second)
	assert.ErrorIs(t, err, ErrConflict)

	close(signer.gate)
	assert.Nil(t, <-firstDone)
}

func TestImmediateRevertOnSubmit(t *testing.T) {
	client := &submitterMock{submitErr: errors.Join(ledger.ErrTransactionRejected, errors.New("campaign is not active"))}
	o := newTestOrchestrator(t, client, &signerMock{address: "donor"}, nil, nil, nil)

	p := ledger.DonatePayload{CampaignID: 1, Amount: 10}
	_, err := o.Submit(context.Background(), p.ActionKey(), p)
	assert.ErrorIs(t, err, ErrLedgerReverted)

	req, ok := o.Status(p.ActionKey())
	assert.True(t, ok)
	assert.Equal(t, StateReverted, req.State)
	assert.Contains(t, req.RevertReason, "campaign is not active")
}

func TestNetworkFailureReturnsKeyToIdle(t *testing.T) {
	client := &submitterMock{submitErr: errors.New("connection refused")}
	o := newTestOrchestrator(t, client, &signerMock{address: "donor"}, nil, nil, nil)

	p := ledger.DonatePayload{CampaignID: 1, Amount: 10}
	_, err := o.Submit(context.Background(), p.ActionKey(), p)
	assert.ErrorIs(t, err, ErrNetwork)

	_, ok := o.Status(p.ActionKey())
	assert.False(t, ok)

	// The caller may retry with a fresh submit.
	client.mux.Lock()
	client.submitErr = nil
	client.mux.Unlock()
	client.setReceipt("tx-1", ledger.Receipt{TxID: "tx-1", Status: ledger.ReceiptConfirmed})
	_, err = o.Submit(context.Background(), p.ActionKey(), p)
	assert.Nil(t, err)
}

func TestRevertReasonCarriedVerbatim(t *testing.T) {
	client := &submitterMock{}
	client.setReceipt("tx-1", ledger.Receipt{TxID: "tx-1", Status: ledger.ReceiptReverted, RevertReason: "only creator can withdraw"})
	o := newTestOrchestrator(t, client, &signerMock{address: "donor"}, nil, nil, nil)

	p := ledger.WithdrawFundsPayload{CampaignID: 1}
	_, err := o.Submit(context.Background(), p.ActionKey(), p)
	assert.Nil(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := o.Await(ctx, p.ActionKey())
	assert.Nil(t, err)
	assert.Equal(t, StateReverted, req.State)
	assert.Equal(t, "only creator can withdraw", req.RevertReason)
}

func TestTimedOutRequiresAcknowledgment(t *testing.T) {
	client := &submitterMock{}
	client.setReceipt("tx-1", ledger.Receipt{TxID: "tx-1", Status: ledger.ReceiptPending})
	o := newTestOrchestrator(t, client, &signerMock{address: "donor"}, nil, nil, nil)

	p := ledger.DonatePayload{CampaignID: 1, Amount: 10}
	_, err := o.Submit(context.Background(), p.ActionKey(), p)
	assert.Nil(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := o.Await(ctx, p.ActionKey())
	assert.Nil(t, err)
	assert.Equal(t, StateTimedOut, req.State)

	// The outcome is ambiguous, a fresh submit without acknowledgment
	// could double spend.
	_, err = o.Submit(context.Background(), p.ActionKey(), p)
	assert.ErrorIs(t, err, ErrConflict)

	assert.True(t, o.Acknowledge(p.ActionKey()))
	_, err = o.Submit(context.Background(), p.ActionKey(), p)
	assert.Nil(t, err)
}

func TestAbandonLeavesKeyTimedOut(t *testing.T) {
	client := &submitterMock{}
	client.setReceipt("tx-1", ledger.Receipt{TxID: "tx-1", Status: ledger.ReceiptPending})
	o := newTestOrchestrator(t, client, &signerMock{address: "donor"}, nil, nil, nil)

	p := ledger.CancelCampaignPayload{CampaignID: 1}
	_, err := o.Submit(context.Background(), p.ActionKey(), p)
	assert.Nil(t, err)

	assert.True(t, o.Abandon(p.ActionKey()))
	req, ok := o.Status(p.ActionKey())
	assert.True(t, ok)
	assert.Equal(t, StateTimedOut, req.State)

	// A confirmation observed after the wait was abandoned does not
	// resurrect the request.
	client.setReceipt("tx-1", ledger.Receipt{TxID: "tx-1", Status: ledger.ReceiptConfirmed})
	time.Sleep(50 * time.Millisecond)
	req, _ = o.Status(p.ActionKey())
	assert.Equal(t, StateTimedOut, req.State)
}

func TestConfirmedDonationSideEffects(t *testing.T) {
	client := &submitterMock{}
	client.setReceipt("tx-1", ledger.Receipt{TxID: "tx-1", Status: ledger.ReceiptConfirmed})
	refresher := &refresherMock{}
	recorder := &recorderMock{}
	o := newTestOrchestrator(t, client, &signerMock{address: "donor"}, nil, refresher, recorder)

	p := ledger.DonatePayload{CampaignID: 7, Amount: 25}
	_, err := o.Submit(context.Background(), p.ActionKey(), p)
	assert.Nil(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := o.Await(ctx, p.ActionKey())
	assert.Nil(t, err)
	assert.Equal(t, StateConfirmed, req.State)

	assert.Eventually(t, func() bool {
		return len(refresher.refreshed()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []uint64{7}, refresher.refreshed())

	recorder.mux.Lock()
	defer recorder.mux.Unlock()
	assert.Len(t, recorder.donations, 1)
	assert.Equal(t, campaign.DonationRecord{CampaignID: 7, Donor: "donor", Amount: 25}, recorder.donations[0])
}

func TestConfirmedCreateRefreshesAssignedID(t *testing.T) {
	client := &submitterMock{}
	client.setReceipt("tx-1", ledger.Receipt{TxID: "tx-1", Status: ledger.ReceiptConfirmed, CampaignID: 42})
	refresher := &refresherMock{}
	o := newTestOrchestrator(t, client, &signerMock{address: "creator"}, nil, refresher, nil)

	p := ledger.CreateCampaignPayload{
		Title:          "Food bank",
		Description:    "Restock the shelves",
		Beneficiary:    "beneficiary",
		TargetAmount:   1000,
		DurationInDays: 14,
		Type:           campaign.PovertyAlleviation,
	}
	_, err := o.Submit(context.Background(), p.ActionKey(), p)
	assert.Nil(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := o.Await(ctx, p.ActionKey())
	assert.Nil(t, err)
	assert.Equal(t, StateConfirmed, req.State)
	assert.Equal(t, uint64(42), req.CampaignID)

	assert.Eventually(t, func() bool {
		ids := refresher.refreshed()
		return len(ids) == 1 && ids[0] == 42
	}, time.Second, 5*time.Millisecond)
}
