package ledger

import "github.com/caritasnetwork/Caritas/campaign"

// Events are informational, the client uses them only as reactive refresh
// triggers and never as a substitute for a fresh campaign read.

// CampaignCreatedEvent announces a newly created campaign.
type CampaignCreatedEvent struct {
	CampaignID   uint64        `json:"campaign_id"`
	Creator      string        `json:"creator"`
	Beneficiary  string        `json:"beneficiary"`
	Title        string        `json:"title"`
	TargetAmount uint64        `json:"target_amount"`
	Deadline     int64         `json:"deadline"`
	Type         campaign.Type `json:"campaign_type"`
}

// DonationMadeEvent announces a confirmed donation.
type DonationMadeEvent struct {
	CampaignID  uint64 `json:"campaign_id"`
	Donor       string `json:"donor"`
	Amount      uint64 `json:"amount"`
	TotalRaised uint64 `json:"total_raised"`
}

// FundsWithdrawnEvent announces a confirmed beneficiary payout.
type FundsWithdrawnEvent struct {
	CampaignID  uint64 `json:"campaign_id"`
	Beneficiary string `json:"beneficiary"`
	Amount      uint64 `json:"amount"`
	PlatformFee uint64 `json:"platform_fee"`
}

// CampaignStatusChangedEvent announces an on-ledger status transition.
type CampaignStatusChangedEvent struct {
	CampaignID uint64          `json:"campaign_id"`
	OldStatus  campaign.Status `json:"old_status"`
	NewStatus  campaign.Status `json:"new_status"`
}

// RefundMadeEvent announces a confirmed donor refund.
type RefundMadeEvent struct {
	CampaignID uint64 `json:"campaign_id"`
	Donor      string `json:"donor"`
	Amount     uint64 `json:"amount"`
}
