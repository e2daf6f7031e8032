package natsclient

import (
	"encoding/json"
	"errors"

	"github.com/nats-io/nats.go"
)

// Subscriber provides functionality to pull ledger events from the pub/sub queue.
type Subscriber struct {
	*socket
	subscriptions []*nats.Subscription
}

// SubscriberConnect connects subscriber to the pub/sub queue using provided config.
func SubscriberConnect(cfg Config) (*Subscriber, error) {
	var s Subscriber
	var err error
	s.socket, err = connect(cfg)
	return &s, err
}

type campaignEvent struct {
	CampaignID uint64 `json:"campaign_id"`
}

// SubscribeRefreshTriggers subscribes to all ledger event subjects and calls
// call with the affected campaign id. Malformed messages are dropped, the
// event stream is informational only.
func (s *Subscriber) SubscribeRefreshTriggers(call func(campaignID uint64)) error {
	subjects := []string{
		SubjectCampaignCreated,
		SubjectDonationMade,
		SubjectFundsWithdrawn,
		SubjectCampaignStatusChanged,
		SubjectRefundMade,
	}
	for _, subject := range subjects {
		sub, err := s.conn.Subscribe(subject, func(m *nats.Msg) {
			var e campaignEvent
			if err := json.Unmarshal(m.Data, &e); err != nil {
				return
			}
			if e.CampaignID == 0 {
				return
			}
			call(e.CampaignID)
		})
		if err != nil {
			return err
		}
		s.subscriptions = append(s.subscriptions, sub)
	}
	return nil
}

// Unsubscribe removes all active subscriptions.
func (s *Subscriber) Unsubscribe() error {
	var errs error
	for _, sub := range s.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	s.subscriptions = nil
	return errs
}
