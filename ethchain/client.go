// Copyright (C) 2024 ChainSync contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

// Package ethchain talks to the Ethereum-compatible JSON-RPC endpoint that
// hosts the world contract: it implements range fetching over historical
// logs and exposes the block-number/live-log subscriptions the
// orchestrator's out-of-scope driver is assumed to already have wired up.
package ethchain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client is the subset of an Ethereum JSON-RPC client this package needs.
// *ethclient.Client satisfies it directly; tests substitute a fake.
type Client interface {
	bind.ContractFilterer

	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Dial connects to an Ethereum JSON-RPC endpoint.
func Dial(ctx context.Context, rawURL string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("couldn't dial ethereum endpoint %q: %w", rawURL, err)
	}
	return client, nil
}
