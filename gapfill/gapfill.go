// Package gapfill closes the gap between a resolved seed's block number and
// the chain head observed at the moment seeding finished.
package gapfill

import (
	"context"

	"code.chainsync.io/sync/cache"
)

// RangeFetcher is the subset of ethchain.RangeFetcher the gap filler needs.
type RangeFetcher interface {
	Fetch(ctx context.Context, from, to uint64) (*cache.Store, error)
}

// Filler wraps a RangeFetcher with the gap filler's short-circuit rule.
type Filler struct {
	fetcher RangeFetcher
}

func New(fetcher RangeFetcher) *Filler {
	return &Filler{fetcher: fetcher}
}

// Fill returns every update in [from, to]. If to <= from there is no gap
// and an empty store is returned without calling the fetcher.
func (f *Filler) Fill(ctx context.Context, from, to uint64) (*cache.Store, error) {
	if to <= from {
		return cache.NewStore(), nil
	}
	return f.fetcher.Fetch(ctx, from, to)
}
