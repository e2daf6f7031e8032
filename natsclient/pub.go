package natsclient

import (
	"encoding/json"

	"github.com/caritasnetwork/Caritas/ledger"
)

// Publisher provides functionality to push ledger events to the pub/sub queue.
type Publisher struct {
	*socket
}

// PublisherConnect connects publisher to the pub/sub queue using provided config.
func PublisherConnect(cfg Config) (*Publisher, error) {
	var p Publisher
	var err error
	p.socket, err = connect(cfg)
	return &p, err
}

// PublishCampaignCreated publishes a campaign creation event.
func (p *Publisher) PublishCampaignCreated(e ledger.CampaignCreatedEvent) error {
	return p.publish(SubjectCampaignCreated, e)
}

// PublishDonationMade publishes a confirmed donation event.
func (p *Publisher) PublishDonationMade(e ledger.DonationMadeEvent) error {
	return p.publish(SubjectDonationMade, e)
}

// PublishFundsWithdrawn publishes a confirmed payout event.
func (p *Publisher) PublishFundsWithdrawn(e ledger.FundsWithdrawnEvent) error {
	return p.publish(SubjectFundsWithdrawn, e)
}

// PublishCampaignStatusChanged publishes an on-ledger status transition event.
func (p *Publisher) PublishCampaignStatusChanged(e ledger.CampaignStatusChangedEvent) error {
	return p.publish(SubjectCampaignStatusChanged, e)
}

// PublishRefundMade publishes a confirmed refund event.
func (p *Publisher) PublishRefundMade(e ledger.RefundMadeEvent) error {
	return p.publish(SubjectRefundMade, e)
}

func (p *Publisher) publish(subject string, e any) error {
	msg, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.conn.Publish(subject, msg)
}
