package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caritasnetwork/Caritas/campaign"
	"github.com/caritasnetwork/Caritas/httpclient"
)

// API surface of the ledger gateway node. The gateway translates these
// calls to the underlying contract, its internal execution is opaque here.
const (
	AliveURL           = "/alive"
	SubmitURL          = "/transactions"
	ReceiptURL         = "/transactions/receipt"
	CampaignInfoURL    = "/campaigns/info"
	DonationAmountURL  = "/campaigns/donation"
	TotalCampaignsURL  = "/campaigns/total"
	ContractBalanceURL = "/contract/balance"
	PlatformFeeURL     = "/contract/fee"
	OwnerURL           = "/contract/owner"
)

const (
	ApiVersion = "1.0.0"
	Header     = "Caritas-Ledger-Gateway"
)

// AliveResponse is the response of the gateway health endpoint.
type AliveResponse struct {
	Alive      bool   `json:"alive"`
	APIVersion string `json:"api_version"`
	APIHeader  string `json:"api_header"`
}

// SubmitResponse is the response of the transaction submission endpoint.
type SubmitResponse struct {
	Success bool   `json:"success"`
	TxID    string `json:"tx_id"`
	Err     string `json:"error,omitempty"`
}

// ReceiptRequest queries the outcome of a submitted transaction.
type ReceiptRequest struct {
	TxID string `json:"tx_id"`
}

// ReceiptResponse is the response of the receipt endpoint.
type ReceiptResponse struct {
	Success bool    `json:"success"`
	Receipt Receipt `json:"receipt"`
	Err     string  `json:"error,omitempty"`
}

// CampaignInfoRequest queries raw campaign fields by id.
type CampaignInfoRequest struct {
	CampaignID uint64 `json:"campaign_id"`
}

// CampaignInfoResponse is the response of the campaign info endpoint.
type CampaignInfoResponse struct {
	Success  bool              `json:"success"`
	Campaign campaign.Campaign `json:"campaign"`
	Err      string            `json:"error,omitempty"`
}

// DonationAmountRequest queries a donor's confirmed contribution to a campaign.
type DonationAmountRequest struct {
	CampaignID uint64 `json:"campaign_id"`
	Donor      string `json:"donor"`
}

// DonationAmountResponse is the response of the donation amount endpoint.
type DonationAmountResponse struct {
	Success bool   `json:"success"`
	Amount  uint64 `json:"amount"`
	Err     string `json:"error,omitempty"`
}

// CountResponse carries a single unsigned counter value.
type CountResponse struct {
	Success bool   `json:"success"`
	Count   uint64 `json:"count"`
	Err     string `json:"error,omitempty"`
}

// OwnerResponse is the response of the owner endpoint.
type OwnerResponse struct {
	Success bool   `json:"success"`
	Owner   string `json:"owner"`
	Err     string `json:"error,omitempty"`
}

// Config holds the ledger gateway connection settings.
type Config struct {
	GatewayURL     string `yaml:"gateway_url"`
	TimeoutSeconds uint64 `yaml:"timeout_seconds"`
}

var ErrTimeoutNotInRange = errors.New("timeout_seconds is not in range of [1 : 120]")

// Validate validates the gateway configuration.
func (c Config) Validate() error {
	if c.TimeoutSeconds < 1 || c.TimeoutSeconds > 120 {
		return ErrTimeoutNotInRange
	}
	return nil
}

// Rest is the REST implementation of the Client boundary.
type Rest struct {
	apiRoot string
	timeout time.Duration
}

// NewRest creates a new REST ledger client from the configuration.
func NewRest(cfg Config) *Rest {
	return &Rest{apiRoot: cfg.GatewayURL, timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
}

// ValidateApiVersion makes a call to the gateway and validates client and server API versions
// and header correctness. Accessing a gateway with a different API version may lead to
// unexpected results.
func (r *Rest) ValidateApiVersion(ctx context.Context) error {
	var alive AliveResponse
	url := fmt.Sprintf("%s%s", r.apiRoot, AliveURL)
	if err := httpclient.MakeGet(r.timeout, url, &alive); err != nil {
		return err
	}

	if alive.APIVersion != ApiVersion {
		return errors.Join(httpclient.ErrApiVersionMismatch, fmt.Errorf("expected %s but got %s", ApiVersion, alive.APIVersion))
	}

	if alive.APIHeader != Header {
		return errors.Join(httpclient.ErrApiHeaderMismatch, fmt.Errorf("expected %s but got %s", Header, alive.APIHeader))
	}

	return nil
}

// Submit implements Submitter.
func (r *Rest) Submit(ctx context.Context, e Envelope) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var res SubmitResponse
	url := fmt.Sprintf("%s%s", r.apiRoot, SubmitURL)
	if err := httpclient.MakePost(r.timeout, url, e, &res); err != nil {
		return "", err
	}
	if !res.Success {
		return "", errors.Join(ErrTransactionRejected, errors.New(res.Err))
	}
	return res.TxID, nil
}

// Receipt implements Submitter.
func (r *Rest) Receipt(ctx context.Context, txID string) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	var res ReceiptResponse
	url := fmt.Sprintf("%s%s", r.apiRoot, ReceiptURL)
	if err := httpclient.MakePost(r.timeout, url, ReceiptRequest{TxID: txID}, &res); err != nil {
		return Receipt{}, err
	}
	if !res.Success {
		return Receipt{}, errors.Join(ErrTransactionNotFound, errors.New(res.Err))
	}
	return res.Receipt, nil
}

// CampaignInfo implements Reader.
func (r *Rest) CampaignInfo(ctx context.Context, id uint64) (campaign.Campaign, error) {
	if err := ctx.Err(); err != nil {
		return campaign.Campaign{}, err
	}
	var res CampaignInfoResponse
	url := fmt.Sprintf("%s%s", r.apiRoot, CampaignInfoURL)
	if err := httpclient.MakePost(r.timeout, url, CampaignInfoRequest{CampaignID: id}, &res); err != nil {
		return campaign.Campaign{}, err
	}
	if !res.Success {
		return campaign.Campaign{}, errors.Join(ErrCampaignNotFound, fmt.Errorf("campaign %d: %s", id, res.Err))
	}
	return res.Campaign, nil
}

// DonationAmount implements Reader.
func (r *Rest) DonationAmount(ctx context.Context, id uint64, donor string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var res DonationAmountResponse
	url := fmt.Sprintf("%s%s", r.apiRoot, DonationAmountURL)
	if err := httpclient.MakePost(r.timeout, url, DonationAmountRequest{CampaignID: id, Donor: donor}, &res); err != nil {
		return 0, err
	}
	if !res.Success {
		return 0, errors.Join(ErrCampaignNotFound, fmt.Errorf("campaign %d: %s", id, res.Err))
	}
	return res.Amount, nil
}

// TotalCampaigns implements Reader.
func (r *Rest) TotalCampaigns(ctx context.Context) (uint64, error) {
	return r.readCount(ctx, TotalCampaignsURL)
}

// ContractBalance implements Reader.
func (r *Rest) ContractBalance(ctx context.Context) (uint64, error) {
	return r.readCount(ctx, ContractBalanceURL)
}

// PlatformFeePercentage implements Reader.
func (r *Rest) PlatformFeePercentage(ctx context.Context) (uint64, error) {
	return r.readCount(ctx, PlatformFeeURL)
}

// Owner implements Reader.
func (r *Rest) Owner(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var res OwnerResponse
	url := fmt.Sprintf("%s%s", r.apiRoot, OwnerURL)
	if err := httpclient.MakeGet(r.timeout, url, &res); err != nil {
		return "", err
	}
	if !res.Success {
		return "", errors.Join(httpclient.ErrRejectedByServer, errors.New(res.Err))
	}
	return res.Owner, nil
}

func (r *Rest) readCount(ctx context.Context, endpoint string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var res CountResponse
	url := fmt.Sprintf("%s%s", r.apiRoot, endpoint)
	if err := httpclient.MakeGet(r.timeout, url, &res); err != nil {
		return 0, err
	}
	if !res.Success {
		return 0, errors.Join(httpclient.ErrRejectedByServer, errors.New(res.Err))
	}
	return res.Count, nil
}
