package ledger

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/caritasnetwork/Caritas/campaign"
)

type validatorMock struct {
	valid map[string]bool
}

func (v validatorMock) IsValidAddress(address string) bool {
	return v.valid[address]
}

func TestCreateCampaignValidation(t *testing.T) {
	v := validatorMock{valid: map[string]bool{"good-address": true}}

	valid := CreateCampaignPayload{
		Title:          "Flood relief",
		Description:    "Help the flooded region",
		Beneficiary:    "good-address",
		TargetAmount:   1000,
		DurationInDays: 30,
		Type:           campaign.DisasterRelief,
	}
	assert.Nil(t, valid.Validate(v))

	cases := []struct {
		name     string
		mutate   func(p CreateCampaignPayload) CreateCampaignPayload
		expected error
	}{
		{"empty title", func(p CreateCampaignPayload) CreateCampaignPayload { p.Title = ""; return p }, ErrEmptyTitle},
		{"empty description", func(p CreateCampaignPayload) CreateCampaignPayload { p.Description = ""; return p }, ErrEmptyDescription},
		{"bad beneficiary", func(p CreateCampaignPayload) CreateCampaignPayload { p.Beneficiary = "bad"; return p }, ErrInvalidAddress},
		{"zero target", func(p CreateCampaignPayload) CreateCampaignPayload { p.TargetAmount = 0; return p }, ErrNonPositiveAmount},
		{"zero duration", func(p CreateCampaignPayload) CreateCampaignPayload { p.DurationInDays = 0; return p }, ErrNonPositiveDuration},
		{"bad type", func(p CreateCampaignPayload) CreateCampaignPayload { p.Type = campaign.Type(9); return p }, ErrInvalidCampaignType},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.ErrorIs(t, c.mutate(valid).Validate(v), c.expected)
		})
	}
}

func TestCreateCampaignWireDeadlineFixedAtSubmission(t *testing.T) {
	p := CreateCampaignPayload{
		Title:          "Winter shelter",
		Description:    "Beds for the cold season",
		Beneficiary:    "good-address",
		TargetAmount:   500,
		DurationInDays: 10,
		Type:           campaign.PovertyAlleviation,
	}
	now := time.Unix(1700000000, 0)

	raw, err := p.Wire(now)
	assert.Nil(t, err)

	var call CreateCampaignCall
	assert.Nil(t, json.Unmarshal(raw, &call))
	assert.Equal(t, now.Unix()+10*24*3600, call.Deadline)
	assert.Equal(t, p.TargetAmount, call.TargetAmount)
}

func TestDonateValidation(t *testing.T) {
	v := validatorMock{}
	assert.Nil(t, DonatePayload{CampaignID: 1, Amount: 10}.Validate(v))
	assert.ErrorIs(t, DonatePayload{CampaignID: 0, Amount: 10}.Validate(v), ErrInvalidCampaignID)
	assert.ErrorIs(t, DonatePayload{CampaignID: 1, Amount: 0}.Validate(v), ErrNonPositiveAmount)
}

func TestCampaignActionsRequireID(t *testing.T) {
	v := validatorMock{}
	assert.ErrorIs(t, WithdrawFundsPayload{}.Validate(v), ErrInvalidCampaignID)
	assert.ErrorIs(t, RequestRefundPayload{}.Validate(v), ErrInvalidCampaignID)
	assert.ErrorIs(t, CancelCampaignPayload{}.Validate(v), ErrInvalidCampaignID)
	assert.ErrorIs(t, CheckStatusPayload{}.Validate(v), ErrInvalidCampaignID)
}

func TestAdminPayloadValidation(t *testing.T) {
	v := validatorMock{valid: map[string]bool{"next-owner": true}}
	assert.Nil(t, UpdatePlatformFeePayload{FeePercentage: 5}.Validate(v))
	assert.ErrorIs(t, UpdatePlatformFeePayload{FeePercentage: 11}.Validate(v), ErrInvalidFeePercentage)
	assert.Nil(t, TransferOwnershipPayload{NewOwner: "next-owner"}.Validate(v))
	assert.ErrorIs(t, TransferOwnershipPayload{NewOwner: "stranger"}.Validate(v), ErrInvalidAddress)
}

func TestActionKeysArePerCampaign(t *testing.T) {
	assert.Equal(t, "donate:5", DonatePayload{CampaignID: 5, Amount: 1}.ActionKey())
	assert.Equal(t, "withdraw_funds:5", WithdrawFundsPayload{CampaignID: 5}.ActionKey())
	assert.NotEqual(t,
		DonatePayload{CampaignID: 5, Amount: 1}.ActionKey(),
		DonatePayload{CampaignID: 6, Amount: 1}.ActionKey(),
	)
}
