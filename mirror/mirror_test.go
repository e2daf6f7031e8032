package mirror

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/caritasnetwork/Caritas/campaign"
)

type statusReaderMock struct {
	statuses map[uint64]campaign.Status
}

func (s statusReaderMock) CachedStatus(id uint64) (campaign.Status, bool) {
	st, ok := s.statuses[id]
	return st, ok
}

type readerMock struct {
	total     uint64
	donations map[uint64]map[string]uint64
}

func (r readerMock) CampaignInfo(_ context.Context, id uint64) (campaign.Campaign, error) {
	return campaign.Campaign{ID: id}, nil
}

func (r readerMock) DonationAmount(_ context.Context, id uint64, donor string) (uint64, error) {
	return r.donations[id][donor], nil
}

func (r readerMock) TotalCampaigns(_ context.Context) (uint64, error) { return r.total, nil }
func (r readerMock) ContractBalance(_ context.Context) (uint64, error) { return 0, nil }
func (r readerMock) PlatformFeePercentage(_ context.Context) (uint64, error) { return 0, nil }
func (r readerMock) Owner(_ context.Context) (string, error) { return "", nil }

func TestRecordAndAmount(t *testing.T) {
	m := New(statusReaderMock{})
	m.RecordConfirmedDonation(1, "alice", 100)
	m.RecordConfirmedDonation(1, "alice", 50)
	m.RecordConfirmedDonation(1, "bob", 25)

	assert.Equal(t, uint64(150), m.Amount(1, "alice"))
	assert.Equal(t, uint64(25), m.Amount(1, "bob"))
	assert.Equal(t, uint64(0), m.Amount(2, "alice"))
}

func TestRefundZeroesTrackedAmount(t *testing.T) {
	m := New(statusReaderMock{})
	m.RecordConfirmedDonation(1, "alice", 100)
	m.RecordConfirmedRefund(1, "alice")
	assert.Equal(t, uint64(0), m.Amount(1, "alice"))
}

func TestEligibleForRefund(t *testing.T) {
	statuses := statusReaderMock{statuses: map[uint64]campaign.Status{
		1: campaign.StatusFailed,
		2: campaign.StatusActive,
		3: campaign.StatusFailed,
	}}
	m := New(statuses)
	m.RecordConfirmedDonation(1, "alice", 100)
	m.RecordConfirmedDonation(2, "alice", 100)

	assert.True(t, m.EligibleForRefund(1, "alice"))
	assert.False(t, m.EligibleForRefund(2, "alice"), "campaign still active")
	assert.False(t, m.EligibleForRefund(3, "alice"), "nothing donated")
	assert.False(t, m.EligibleForRefund(4, "alice"), "unknown campaign")

	m.RecordConfirmedRefund(1, "alice")
	assert.False(t, m.EligibleForRefund(1, "alice"), "already refunded")
}

func TestRecordsOrderedByCampaignID(t *testing.T) {
	m := New(statusReaderMock{})
	m.RecordConfirmedDonation(3, "alice", 30)
	m.RecordConfirmedDonation(1, "alice", 10)
	m.RecordConfirmedDonation(2, "bob", 20)

	records := m.Records("alice")
	assert.Len(t, records, 2)
	assert.Equal(t, uint64(1), records[0].CampaignID)
	assert.Equal(t, uint64(3), records[1].CampaignID)
}

func TestRebuildReplaysLedgerReads(t *testing.T) {
	m := New(statusReaderMock{})
	m.RecordConfirmedDonation(9, "stale", 999)

	r := readerMock{
		total: 2,
		donations: map[uint64]map[string]uint64{
			1: {"alice": 100},
			2: {"bob": 50},
		},
	}
	err := m.Rebuild(context.Background(), r, []string{"alice", "bob"})
	assert.Nil(t, err)

	assert.Equal(t, uint64(100), m.Amount(1, "alice"))
	assert.Equal(t, uint64(50), m.Amount(2, "bob"))
	assert.Equal(t, uint64(0), m.Amount(9, "stale"))
}
