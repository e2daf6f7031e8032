package fileoperations

import (
	"errors"
	"os"

	"github.com/caritasnetwork/Caritas/store"
)

// ReadCampaignStore reads the local campaign store from the file.
// A missing file yields an empty book so a first run starts clean.
func (h Helper) ReadCampaignStore() (*store.Book, error) {
	raw, err := os.ReadFile(h.cfg.CampaignStorePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return store.NewBook(), nil
		}
		return nil, err
	}
	return store.DecodeBook(raw)
}

// SaveCampaignStore merges the book with the persisted one and writes the result,
// so records appended by another process since the last read are not lost.
func (h Helper) SaveCampaignStore(b *store.Book) error {
	persisted, err := h.ReadCampaignStore()
	if err != nil {
		return err
	}
	b.Merge(persisted)

	raw, err := b.Encode()
	if err != nil {
		return err
	}

	return os.WriteFile(h.cfg.CampaignStorePath, raw, 0644)
}
