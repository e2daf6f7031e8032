package campaign

import (
	"errors"
	"time"
)

var (
	ErrUnknownType   = errors.New("unknown campaign type")
	ErrUnknownStatus = errors.New("unknown campaign status")
)

// Type describes the charitable purpose of a campaign.
// Numeric values follow the on-ledger enum and shall not be reordered.
type Type uint8

const (
	DisasterRelief Type = iota
	PovertyAlleviation
)

// Valid checks if type is one of the on-ledger campaign types.
func (t Type) Valid() bool {
	switch t {
	case DisasterRelief, PovertyAlleviation:
		return true
	default:
		return false
	}
}

func (t Type) String() string {
	switch t {
	case DisasterRelief:
		return "disaster_relief"
	case PovertyAlleviation:
		return "poverty_alleviation"
	default:
		return "unknown"
	}
}

// Status is the lifecycle status of a campaign.
// Numeric values follow the on-ledger enum and shall not be reordered.
type Status uint8

const (
	StatusActive Status = iota
	StatusCompleted
	StatusCancelled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal checks if no further donations are accepted for a campaign in that status.
func (s Status) Terminal() bool {
	return s != StatusActive
}

// Campaign holds a single fundraising effort as recorded on the ledger.
// ID is assigned by the ledger, monotonically and starting from 1,
// so the zero value never references an existing campaign.
// Amounts are expressed in the smallest currency unit.
type Campaign struct {
	ID             uint64 `json:"id"              yaml:"id"`
	Title          string `json:"title"           yaml:"title"`
	Description    string `json:"description"     yaml:"description"`
	Creator        string `json:"creator"         yaml:"creator"`
	Beneficiary    string `json:"beneficiary"     yaml:"beneficiary"`
	TargetAmount   uint64 `json:"target_amount"   yaml:"target_amount"`
	RaisedAmount   uint64 `json:"raised_amount"   yaml:"raised_amount"`
	Deadline       int64  `json:"deadline"        yaml:"deadline"` // unix seconds
	Type           Type   `json:"campaign_type"   yaml:"campaign_type"`
	Status         Status `json:"status"          yaml:"status"`
	FundsWithdrawn bool   `json:"funds_withdrawn" yaml:"funds_withdrawn"`
}

// DonationRecord tracks a single donor's confirmed contribution to a campaign.
type DonationRecord struct {
	CampaignID uint64 `json:"campaign_id" yaml:"campaign_id"`
	Donor      string `json:"donor"       yaml:"donor"`
	Amount     uint64 `json:"amount"      yaml:"amount"`
}

// DeriveStatus computes the authoritative campaign status from raw ledger fields.
// It is a pure function, the same inputs always produce the same status.
// Precedence, first match wins:
//   - an explicit on-ledger cancellation overrides everything else,
//   - reaching the target is a permanent success even after the deadline,
//   - a passed deadline without reaching the target fails the campaign,
//   - otherwise the campaign is active.
//
// The explicit flags carry the ledger-reported status so that sticky terminal
// states survive re-derivation with a later now value.
func DeriveStatus(raised, target uint64, deadline, now int64, explicitCancelled, explicitCompleted bool) Status {
	switch {
	case explicitCancelled:
		return StatusCancelled
	case explicitCompleted || raised >= target:
		return StatusCompleted
	case now >= deadline:
		return StatusFailed
	default:
		return StatusActive
	}
}

// Derive recomputes the status of the campaign from its raw fields at the given time.
// The ledger-reported status on the receiver supplies the explicit cancellation
// and completion flags.
func (c Campaign) Derive(now time.Time) Status {
	return DeriveStatus(
		c.RaisedAmount, c.TargetAmount, c.Deadline, now.Unix(),
		c.Status == StatusCancelled, c.Status == StatusCompleted,
	)
}
