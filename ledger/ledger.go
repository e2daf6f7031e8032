package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/caritasnetwork/Caritas/campaign"
)

var (
	ErrEmptyTitle            = errors.New("title cannot be empty")
	ErrEmptyDescription      = errors.New("description cannot be empty")
	ErrInvalidAddress        = errors.New("invalid address")
	ErrNonPositiveAmount     = errors.New("amount must be greater than zero")
	ErrNonPositiveDuration   = errors.New("duration must be greater than zero")
	ErrInvalidCampaignType   = errors.New("invalid campaign type")
	ErrInvalidCampaignID     = errors.New("campaign id is required")
	ErrInvalidFeePercentage  = errors.New("fee percentage is out of range")
	ErrCampaignNotFound      = errors.New("campaign not found")
	ErrTransactionNotFound   = errors.New("transaction not found")
	ErrTransactionRejected   = errors.New("transaction rejected by the ledger")
)

const maxPlatformFeePercentage = 10

// Action names a mutating ledger operation.
type Action string

const (
	ActionCreateCampaign    Action = "create_campaign"
	ActionDonate            Action = "donate"
	ActionWithdrawFunds     Action = "withdraw_funds"
	ActionRequestRefund     Action = "request_refund"
	ActionCancelCampaign    Action = "cancel_campaign"
	ActionCheckStatus       Action = "check_status"
	ActionUpdatePlatformFee Action = "update_platform_fee"
	ActionTransferOwnership Action = "transfer_ownership"
)

// AddressValidator checks the local well-formedness of a ledger address.
type AddressValidator interface {
	IsValidAddress(address string) bool
}

// Payload is one tagged variant per mutating ledger action.
// Each variant carries exactly the fields its action requires,
// validates them locally without a ledger round trip and produces
// the wire form submitted inside an Envelope.
type Payload interface {
	Action() Action
	ActionKey() string
	CampaignIDs() []uint64
	Validate(v AddressValidator) error
	Wire(now time.Time) (json.RawMessage, error)
}

// CreateCampaignPayload starts a new fundraising campaign.
// DurationInDays is converted to an absolute deadline when the wire
// form is produced at submission time, not at confirmation time.
type CreateCampaignPayload struct {
	Title          string
	Description    string
	Beneficiary    string
	TargetAmount   uint64
	DurationInDays uint64
	Type           campaign.Type
}

// CreateCampaignCall is the wire form of CreateCampaignPayload.
type CreateCampaignCall struct {
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Beneficiary  string        `json:"beneficiary"`
	TargetAmount uint64        `json:"target_amount"`
	Deadline     int64         `json:"deadline"`
	Type         campaign.Type `json:"campaign_type"`
}

func (p CreateCampaignPayload) Action() Action        { return ActionCreateCampaign }
func (p CreateCampaignPayload) ActionKey() string     { return string(ActionCreateCampaign) }
func (p CreateCampaignPayload) CampaignIDs() []uint64 { return nil }

func (p CreateCampaignPayload) Validate(v AddressValidator) error {
	if p.Title == "" {
		return ErrEmptyTitle
	}
	if p.Description == "" {
		return ErrEmptyDescription
	}
	if !v.IsValidAddress(p.Beneficiary) {
		return errors.Join(ErrInvalidAddress, fmt.Errorf("beneficiary %q", p.Beneficiary))
	}
	if p.TargetAmount == 0 {
		return ErrNonPositiveAmount
	}
	if p.DurationInDays == 0 {
		return ErrNonPositiveDuration
	}
	if !p.Type.Valid() {
		return ErrInvalidCampaignType
	}
	return nil
}

func (p CreateCampaignPayload) Wire(now time.Time) (json.RawMessage, error) {
	return json.Marshal(CreateCampaignCall{
		Title:        p.Title,
		Description:  p.Description,
		Beneficiary:  p.Beneficiary,
		TargetAmount: p.TargetAmount,
		Deadline:     now.Add(time.Duration(p.DurationInDays) * 24 * time.Hour).Unix(),
		Type:         p.Type,
	})
}

// DonatePayload contributes the given amount to a campaign.
type DonatePayload struct {
	CampaignID uint64
	Amount     uint64
}

// DonateCall is the wire form of DonatePayload.
type DonateCall struct {
	CampaignID uint64 `json:"campaign_id"`
	Amount     uint64 `json:"amount"`
}

func (p DonatePayload) Action() Action        { return ActionDonate }
func (p DonatePayload) ActionKey() string     { return fmt.Sprintf("%s:%d", ActionDonate, p.CampaignID) }
func (p DonatePayload) CampaignIDs() []uint64 { return []uint64{p.CampaignID} }

func (p DonatePayload) Validate(_ AddressValidator) error {
	if p.CampaignID == 0 {
		return ErrInvalidCampaignID
	}
	if p.Amount == 0 {
		return ErrNonPositiveAmount
	}
	return nil
}

func (p DonatePayload) Wire(_ time.Time) (json.RawMessage, error) {
	return json.Marshal(DonateCall{CampaignID: p.CampaignID, Amount: p.Amount})
}

// CampaignCall is the wire form shared by all single campaign actions.
type CampaignCall struct {
	CampaignID uint64 `json:"campaign_id"`
}

// WithdrawFundsPayload pays out a completed campaign to its beneficiary.
// The caller role is ledger enforced, there is no creator check here.
type WithdrawFundsPayload struct {
	CampaignID uint64
}

func (p WithdrawFundsPayload) Action() Action { return ActionWithdrawFunds }
func (p WithdrawFundsPayload) ActionKey() string {
	return fmt.Sprintf("%s:%d", ActionWithdrawFunds, p.CampaignID)
}
func (p WithdrawFundsPayload) CampaignIDs() []uint64 { return []uint64{p.CampaignID} }

func (p WithdrawFundsPayload) Validate(_ AddressValidator) error {
	if p.CampaignID == 0 {
		return ErrInvalidCampaignID
	}
	return nil
}

func (p WithdrawFundsPayload) Wire(_ time.Time) (json.RawMessage, error) {
	return json.Marshal(CampaignCall{CampaignID: p.CampaignID})
}

// RequestRefundPayload reclaims the caller's donation from a failed campaign.
// Refund eligibility is ledger enforced.
type RequestRefundPayload struct {
	CampaignID uint64
}

func (p RequestRefundPayload) Action() Action { return ActionRequestRefund }
func (p RequestRefundPayload) ActionKey() string {
	return fmt.Sprintf("%s:%d", ActionRequestRefund, p.CampaignID)
}
func (p RequestRefundPayload) CampaignIDs() []uint64 { return []uint64{p.CampaignID} }

func (p RequestRefundPayload) Validate(_ AddressValidator) error {
	if p.CampaignID == 0 {
		return ErrInvalidCampaignID
	}
	return nil
}

func (p RequestRefundPayload) Wire(_ time.Time) (json.RawMessage, error) {
	return json.Marshal(CampaignCall{CampaignID: p.CampaignID})
}

// CancelCampaignPayload cancels an active campaign.
// The caller role is ledger enforced.
type CancelCampaignPayload struct {
	CampaignID uint64
}

func (p CancelCampaignPayload) Action() Action { return ActionCancelCampaign }
func (p CancelCampaignPayload) ActionKey() string {
	return fmt.Sprintf("%s:%d", ActionCancelCampaign, p.CampaignID)
}
func (p CancelCampaignPayload) CampaignIDs() []uint64 { return []uint64{p.CampaignID} }

func (p CancelCampaignPayload) Validate(_ AddressValidator) error {
	if p.CampaignID == 0 {
		return ErrInvalidCampaignID
	}
	return nil
}

func (p CancelCampaignPayload) Wire(_ time.Time) (json.RawMessage, error) {
	return json.Marshal(CampaignCall{CampaignID: p.CampaignID})
}

// CheckStatusPayload asks the ledger to recompute and persist the campaign status.
type CheckStatusPayload struct {
	CampaignID uint64
}

func (p CheckStatusPayload) Action() Action { return ActionCheckStatus }
func (p CheckStatusPayload) ActionKey() string {
	return fmt.Sprintf("%s:%d", ActionCheckStatus, p.CampaignID)
}
func (p CheckStatusPayload) CampaignIDs() []uint64 { return []uint64{p.CampaignID} }

func (p CheckStatusPayload) Validate(_ AddressValidator) error {
	if p.CampaignID == 0 {
		return ErrInvalidCampaignID
	}
	return nil
}

func (p CheckStatusPayload) Wire(_ time.Time) (json.RawMessage, error) {
	return json.Marshal(CampaignCall{CampaignID: p.CampaignID})
}

// UpdatePlatformFeePayload changes the platform fee, owner only on the ledger side.
type UpdatePlatformFeePayload struct {
	FeePercentage uint64
}

// UpdatePlatformFeeCall is the wire form of UpdatePlatformFeePayload.
type UpdatePlatformFeeCall struct {
	FeePercentage uint64 `json:"fee_percentage"`
}

func (p UpdatePlatformFeePayload) Action() Action        { return ActionUpdatePlatformFee }
func (p UpdatePlatformFeePayload) ActionKey() string     { return string(ActionUpdatePlatformFee) }
func (p UpdatePlatformFeePayload) CampaignIDs() []uint64 { return nil }

func (p UpdatePlatformFeePayload) Validate(_ AddressValidator) error {
	if p.FeePercentage > maxPlatformFeePercentage {
		return errors.Join(ErrInvalidFeePercentage, fmt.Errorf("got %d, maximum is %d", p.FeePercentage, maxPlatformFeePercentage))
	}
	return nil
}

func (p UpdatePlatformFeePayload) Wire(_ time.Time) (json.RawMessage, error) {
	return json.Marshal(UpdatePlatformFeeCall{FeePercentage: p.FeePercentage})
}

// TransferOwnershipPayload hands platform ownership over, owner only on the ledger side.
type TransferOwnershipPayload struct {
	NewOwner string
}

// TransferOwnershipCall is the wire form of TransferOwnershipPayload.
type TransferOwnershipCall struct {
	NewOwner string `json:"new_owner"`
}

func (p TransferOwnershipPayload) Action() Action        { return ActionTransferOwnership }
func (p TransferOwnershipPayload) ActionKey() string     { return string(ActionTransferOwnership) }
func (p TransferOwnershipPayload) CampaignIDs() []uint64 { return nil }

func (p TransferOwnershipPayload) Validate(v AddressValidator) error {
	if !v.IsValidAddress(p.NewOwner) {
		return errors.Join(ErrInvalidAddress, fmt.Errorf("new owner %q", p.NewOwner))
	}
	return nil
}

func (p TransferOwnershipPayload) Wire(_ time.Time) (json.RawMessage, error) {
	return json.Marshal(TransferOwnershipCall{NewOwner: p.NewOwner})
}
