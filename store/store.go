package store

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/exp/slices"

	"github.com/caritasnetwork/Caritas/campaign"
)

// Record is one persisted campaign summary. StoreID identifies the record
// within the store, a ledger assigned campaign keeps a deterministic id so
// concurrent writers converge on the same record, a campaign whose ledger id
// is not yet known gets a client assigned one.
type Record struct {
	StoreID   string            `json:"store_id"`
	Campaign  campaign.Campaign `json:"campaign"`
	UpdatedAt int64             `json:"updated_at"` // unix nanoseconds
}

// NewRecord creates a Record for the campaign stamped with the given time.
func NewRecord(c campaign.Campaign, now time.Time) Record {
	id := primitive.NewObjectID().Hex()
	if c.ID != 0 {
		id = fmt.Sprintf("campaign-%d", c.ID)
	}
	return Record{StoreID: id, Campaign: c, UpdatedAt: now.UnixNano()}
}

// Book holds campaign summary records keyed by store identifier.
// External processes may append to the same persisted store concurrently,
// merging resolves conflicts per record with the last writer winning.
type Book struct {
	mux     sync.RWMutex
	records map[string]Record
}

// NewBook creates an empty Book.
func NewBook() *Book {
	return &Book{records: make(map[string]Record)}
}

// Upsert writes the record unless the book holds a newer one under the same store id.
func (b *Book) Upsert(r Record) {
	b.mux.Lock()
	defer b.mux.Unlock()
	if existing, ok := b.records[r.StoreID]; ok && existing.UpdatedAt > r.UpdatedAt {
		return
	}
	b.records[r.StoreID] = r
}

// Merge folds all records of the other book in, last writer wins per store id.
func (b *Book) Merge(other *Book) {
	other.mux.RLock()
	records := make([]Record, 0, len(other.records))
	for _, r := range other.records {
		records = append(records, r)
	}
	other.mux.RUnlock()
	for _, r := range records {
		b.Upsert(r)
	}
}

// Get returns the record by store id.
func (b *Book) Get(storeID string) (Record, bool) {
	b.mux.RLock()
	defer b.mux.RUnlock()
	r, ok := b.records[storeID]
	return r, ok
}

// List returns all records ordered by ledger campaign id ascending,
// records without a ledger id follow ordered by store id.
func (b *Book) List() []Record {
	b.mux.RLock()
	defer b.mux.RUnlock()
	list := make([]Record, 0, len(b.records))
	for _, r := range b.records {
		list = append(list, r)
	}
	slices.SortFunc(list, func(a, c Record) bool {
		switch {
		case a.Campaign.ID != c.Campaign.ID:
			if a.Campaign.ID == 0 {
				return false
			}
			if c.Campaign.ID == 0 {
				return true
			}
			return a.Campaign.ID < c.Campaign.ID
		default:
			return a.StoreID < c.StoreID
		}
	})
	return list
}

// Encode serializes the book to JSON.
func (b *Book) Encode() ([]byte, error) {
	return json.Marshal(b.List())
}

// DecodeBook deserializes a book from JSON.
func DecodeBook(raw []byte) (*Book, error) {
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	b := NewBook()
	for _, r := range records {
		b.Upsert(r)
	}
	return b, nil
}
