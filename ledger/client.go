package ledger

import (
	"context"
	"encoding/json"

	"github.com/caritasnetwork/Caritas/campaign"
)

// Envelope wraps a signed wire payload of one mutating ledger action.
// Hash is the sha256 digest of Payload and Signature its ed25519
// signature by the wallet behind Address.
type Envelope struct {
	Address   string          `json:"address"`
	Action    Action          `json:"action"`
	Payload   json.RawMessage `json:"payload"`
	Hash      [32]byte        `json:"hash"`
	Signature []byte          `json:"signature"`
}

// ReceiptStatus describes the submission outcome as observed on the ledger.
type ReceiptStatus string

const (
	ReceiptPending   ReceiptStatus = "pending"
	ReceiptConfirmed ReceiptStatus = "confirmed"
	ReceiptReverted  ReceiptStatus = "reverted"
)

// Receipt is the ledger's acknowledgment of a submitted transaction.
// RevertReason carries the ledger's reason verbatim when Status is reverted.
// CampaignID is set on confirmed create_campaign transactions.
type Receipt struct {
	TxID         string        `json:"tx_id"`
	Status       ReceiptStatus `json:"status"`
	CampaignID   uint64        `json:"campaign_id,omitempty"`
	RevertReason string        `json:"revert_reason,omitempty"`
}

// Reader provides the query operations of the remote ledger.
type Reader interface {
	CampaignInfo(ctx context.Context, id uint64) (campaign.Campaign, error)
	DonationAmount(ctx context.Context, id uint64, donor string) (uint64, error)
	TotalCampaigns(ctx context.Context) (uint64, error)
	ContractBalance(ctx context.Context) (uint64, error)
	PlatformFeePercentage(ctx context.Context) (uint64, error)
	Owner(ctx context.Context) (string, error)
}

// Submitter provides the write path of the remote ledger.
// Submit hands a signed envelope over and returns a transaction id,
// Receipt reports the outcome observed for that id so far.
// A submitted transaction is final, there is no retraction call.
type Submitter interface {
	Submit(ctx context.Context, e Envelope) (string, error)
	Receipt(ctx context.Context, txID string) (Receipt, error)
}

// Client is the full typed boundary of the remote ledger.
type Client interface {
	Reader
	Submitter
}
