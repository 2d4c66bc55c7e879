package bankverify

import (
	"context"
	"time"

	"github.com/seenimoa/stackswap/internal/infra"
	"github.com/seenimoa/stackswap/pkg/models"
)

const banksCacheKey = "banks"

// Messages for bank list failures.
const (
	MsgBanksFailed      = "Failed to load banks."
	MsgBanksUnreachable = "Could not load bank list."
)

// Lister returns the supported banks. *backend.Client satisfies it.
type Lister interface {
	ListBanks(ctx context.Context) ([]models.Bank, error)
}

// Directory caches the bank list.
type Directory struct {
	lister Lister
	cache  *infra.Cache
}

// NewDirectory caches lister's answer for ttl.
func NewDirectory(lister Lister, ttl time.Duration) *Directory {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Directory{lister: lister, cache: infra.NewCache(ttl)}
}

// Banks returns the cached list, loading it on a miss. An empty answer is
// not cached.
func (d *Directory) Banks(ctx context.Context) ([]models.Bank, error) {
	if v, ok := d.cache.Get(banksCacheKey); ok {
		return v.([]models.Bank), nil
	}
	banks, err := d.lister.ListBanks(ctx)
	if err != nil {
		return nil, err
	}
	if len(banks) > 0 {
		d.cache.Set(banksCacheKey, banks)
	}
	return banks, nil
}

// Cached returns the list only if it is already loaded.
func (d *Directory) Cached() []models.Bank {
	if v, ok := d.cache.Get(banksCacheKey); ok {
		return v.([]models.Bank)
	}
	return nil
}

// Name returns the display name of a cached bank code.
func (d *Directory) Name(code string) string {
	for _, b := range d.Cached() {
		if b.Code == code {
			return b.Name
		}
	}
	return ""
}

// Invalidate drops the cached list.
func (d *Directory) Invalidate() { d.cache.Invalidate(banksCacheKey) }
