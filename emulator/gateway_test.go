package emulator

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/caritasnetwork/Caritas/campaign"
	"github.com/caritasnetwork/Caritas/ledger"
)

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		assert.Nil(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, target, &buf)
	assert.Nil(t, err)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, res *http.Response, v any) {
	t.Helper()
	raw, err := io.ReadAll(res.Body)
	assert.Nil(t, err)
	assert.Nil(t, json.Unmarshal(raw, v))
}

func TestGatewayAliveReportsVersionAndHeader(t *testing.T) {
	app := NewGatewayApp(Config{FeePercentage: 5, Owner: "owner-address"}, nil)

	res, err := app.Test(jsonRequest(t, http.MethodGet, ledger.AliveURL, nil))
	assert.Nil(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var alive ledger.AliveResponse
	decodeBody(t, res, &alive)
	assert.True(t, alive.Alive)
	assert.Equal(t, ledger.ApiVersion, alive.APIVersion)
	assert.Equal(t, ledger.Header, alive.APIHeader)
}

func TestGatewaySubmitReceiptRoundTrip(t *testing.T) {
	app := NewGatewayApp(Config{FeePercentage: 5, Owner: "owner-address"}, nil)
	creator := newWallet(t)
	beneficiary := newWallet(t)

	p := ledger.CreateCampaignPayload{
		Title:          "roof repairs",
		Description:    "storm damage",
		Beneficiary:    beneficiary.Address(),
		TargetAmount:   500,
		DurationInDays: 7,
		Type:           campaign.DisasterRelief,
	}
	res, err := app.Test(jsonRequest(t, http.MethodPost, ledger.SubmitURL, envelope(t, creator, p, time.Now())))
	assert.Nil(t, err)

	var submit ledger.SubmitResponse
	decodeBody(t, res, &submit)
	assert.True(t, submit.Success)
	assert.NotEmpty(t, submit.TxID)

	res, err = app.Test(jsonRequest(t, http.MethodPost, ledger.ReceiptURL, ledger.ReceiptRequest{TxID: submit.TxID}))
	assert.Nil(t, err)

	var receipt ledger.ReceiptResponse
	decodeBody(t, res, &receipt)
	assert.True(t, receipt.Success)
	assert.Equal(t, ledger.ReceiptConfirmed, receipt.Receipt.Status)
	assert.Equal(t, uint64(1), receipt.Receipt.CampaignID)

	res, err = app.Test(jsonRequest(t, http.MethodPost, ledger.CampaignInfoURL, ledger.CampaignInfoRequest{CampaignID: 1}))
	assert.Nil(t, err)

	var info ledger.CampaignInfoResponse
	decodeBody(t, res, &info)
	assert.True(t, info.Success)
	assert.Equal(t, "roof repairs", info.Campaign.Title)
	assert.Equal(t, creator.Address(), info.Campaign.Creator)
}

func TestGatewayReceiptUnknownTransaction(t *testing.T) {
	app := NewGatewayApp(Config{FeePercentage: 5, Owner: "owner-address"}, nil)

	res, err := app.Test(jsonRequest(t, http.MethodPost, ledger.ReceiptURL, ledger.ReceiptRequest{TxID: "missing"}))
	assert.Nil(t, err)

	var receipt ledger.ReceiptResponse
	decodeBody(t, res, &receipt)
	assert.False(t, receipt.Success)
	assert.NotEmpty(t, receipt.Err)
}

func TestGatewayReadEndpoints(t *testing.T) {
	app := NewGatewayApp(Config{FeePercentage: 7, Owner: "owner-address"}, nil)

	var fee ledger.CountResponse
	res, err := app.Test(jsonRequest(t, http.MethodGet, ledger.PlatformFeeURL, nil))
	assert.Nil(t, err)
	decodeBody(t, res, &fee)
	assert.True(t, fee.Success)
	assert.Equal(t, uint64(7), fee.Count)

	var owner ledger.OwnerResponse
	res, err = app.Test(jsonRequest(t, http.MethodGet, ledger.OwnerURL, nil))
	assert.Nil(t, err)
	decodeBody(t, res, &owner)
	assert.True(t, owner.Success)
	assert.Equal(t, "owner-address", owner.Owner)

	var total ledger.CountResponse
	res, err = app.Test(jsonRequest(t, http.MethodGet, ledger.TotalCampaignsURL, nil))
	assert.Nil(t, err)
	decodeBody(t, res, &total)
	assert.True(t, total.Success)
	assert.Zero(t, total.Count)
}
