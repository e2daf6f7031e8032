package mirror

import (
	"context"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/caritasnetwork/Caritas/campaign"
	"github.com/caritasnetwork/Caritas/ledger"
)

// StatusReader reports the locally cached status of a campaign.
type StatusReader interface {
	CachedStatus(id uint64) (campaign.Status, bool)
}

// Mirror tracks confirmed per campaign, per donor contributions.
// It is a cache rebuildable from ledger reads at any time,
// the ledger stays the system of record.
type Mirror struct {
	mux       sync.RWMutex
	donations map[uint64]map[string]uint64
	statuses  StatusReader
}

// New creates a new empty Mirror reading campaign statuses from the given reader.
func New(statuses StatusReader) *Mirror {
	return &Mirror{
		donations: make(map[uint64]map[string]uint64),
		statuses:  statuses,
	}
}

// RecordConfirmedDonation adds a ledger confirmed donation amount to the donor's tracked total.
// Call it only for confirmed transactions, the mirror performs no validation.
func (m *Mirror) RecordConfirmedDonation(campaignID uint64, donor string, amount uint64) {
	m.mux.Lock()
	defer m.mux.Unlock()
	donors, ok := m.donations[campaignID]
	if !ok {
		donors = make(map[string]uint64)
		m.donations[campaignID] = donors
	}
	donors[donor] += amount
}

// RecordConfirmedRefund zeroes the donor's tracked amount for the campaign.
func (m *Mirror) RecordConfirmedRefund(campaignID uint64, donor string) {
	m.mux.Lock()
	defer m.mux.Unlock()
	donors, ok := m.donations[campaignID]
	if !ok {
		return
	}
	delete(donors, donor)
	if len(donors) == 0 {
		delete(m.donations, campaignID)
	}
}

// Amount returns the donor's tracked confirmed contribution to the campaign.
func (m *Mirror) Amount(campaignID uint64, donor string) uint64 {
	m.mux.RLock()
	defer m.mux.RUnlock()
	return m.donations[campaignID][donor]
}

// Records returns all tracked donation records of the donor ordered by campaign id.
func (m *Mirror) Records(donor string) []campaign.DonationRecord {
	m.mux.RLock()
	defer m.mux.RUnlock()
	var records []campaign.DonationRecord
	for id, donors := range m.donations {
		if amount, ok := donors[donor]; ok && amount > 0 {
			records = append(records, campaign.DonationRecord{CampaignID: id, Donor: donor, Amount: amount})
		}
	}
	slices.SortFunc(records, func(a, b campaign.DonationRecord) bool { return a.CampaignID < b.CampaignID })
	return records
}

// EligibleForRefund checks if the donor can reclaim a contribution.
// True only when the campaign status is failed and the tracked amount is above zero.
func (m *Mirror) EligibleForRefund(campaignID uint64, donor string) bool {
	status, ok := m.statuses.CachedStatus(campaignID)
	if !ok || status != campaign.StatusFailed {
		return false
	}
	return m.Amount(campaignID, donor) > 0
}

// Rebuild drops all tracked amounts and replays them from ledger reads
// for the given donors across every campaign known to the ledger.
func (m *Mirror) Rebuild(ctx context.Context, r ledger.Reader, donors []string) error {
	total, err := r.TotalCampaigns(ctx)
	if err != nil {
		return err
	}

	rebuilt := make(map[uint64]map[string]uint64)
	for id := uint64(1); id <= total; id++ {
		for _, donor := range donors {
			amount, err := r.DonationAmount(ctx, id, donor)
			if err != nil {
				return err
			}
			if amount == 0 {
				continue
			}
			if _, ok := rebuilt[id]; !ok {
				rebuilt[id] = make(map[string]uint64)
			}
			rebuilt[id][donor] = amount
		}
	}

	m.mux.Lock()
	defer m.mux.Unlock()
	m.donations = rebuilt
	return nil
}
