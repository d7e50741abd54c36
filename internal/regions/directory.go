package regions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/SergeyBogomolovv/checkout-service/internal/backend"
	"github.com/SergeyBogomolovv/checkout-service/pkg/cache"
)

var ErrUnknownRegion = errors.New("unknown region code")

type Client interface {
	Regions(ctx context.Context, countryID string) ([]backend.Region, error)
}

// Directory resolves (country, region code) pairs to the backend's numeric
// region ids. Country listings are cached and concurrent fills for the same
// country collapse into one backend call.
type Directory struct {
	logger *slog.Logger
	client Client
	cache  *cache.LRUCache
	group  singleflight.Group
}

func NewDirectory(logger *slog.Logger, client Client, cache *cache.LRUCache) *Directory {
	return &Directory{
		logger: logger.With(slog.String("service", "regions")),
		client: client,
		cache:  cache,
	}
}

// ResolveID returns the numeric id for a region code within a country.
// A country without subdivisions resolves every code to zero.
func (d *Directory) ResolveID(ctx context.Context, countryID, regionCode string) (int, error) {
	if regionCode == "" {
		return 0, nil
	}

	list, err := d.country(ctx, countryID)
	if err != nil {
		return 0, err
	}
	if len(list) == 0 {
		return 0, nil
	}

	for _, r := range list {
		if strings.EqualFold(r.Code, regionCode) {
			return r.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: %s/%s", ErrUnknownRegion, countryID, regionCode)
}

func (d *Directory) country(ctx context.Context, countryID string) ([]backend.Region, error) {
	key := strings.ToUpper(countryID)

	if data, ok := d.cache.Get(key); ok {
		var list []backend.Region
		if err := json.Unmarshal(data, &list); err == nil {
			return list, nil
		}
		// Corrupt cache entry falls through to a fresh fetch.
	}

	v, err, _ := d.group.Do(key, func() (any, error) {
		list, err := d.client.Regions(ctx, countryID)
		if err != nil {
			return nil, fmt.Errorf("failed to load region directory: %w", err)
		}
		if data, err := json.Marshal(list); err == nil {
			d.cache.Set(key, data)
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]backend.Region), nil
}
