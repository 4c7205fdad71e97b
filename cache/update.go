// Copyright (C) 2024 ChainSync contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

// Package cache holds the ECS component-update data model — ComponentUpdate
// and CacheStore — plus the PersistentCache collaborator that gives a
// CacheStore a home on disk between synchronizer runs.
package cache

// CacheTxHash is the synthetic transaction identifier stamped on every
// ComponentUpdate that was synthesized from a cache, a snapshot, or a gap
// fetch rather than observed directly in a real on-chain transaction.
const CacheTxHash = "cache"

// ComponentUpdate is the atomic unit flowing through the synchronizer: one
// write of one component's value for one entity.
type ComponentUpdate struct {
	Component []byte
	Entity    []byte
	Value     []byte

	// TxHash identifies the transaction this update originated in. The
	// value CacheTxHash marks an update synthesized by this synchronizer
	// (cache, snapshot, or gap) rather than observed live.
	TxHash string

	// LastEventInTx is true only for the final update of a real
	// transaction; always false on synthesized updates. Package
	// orchestrator also forces it false on buffered live updates while
	// draining, since by the time they're replayed their original
	// position in a transaction is no longer meaningful.
	LastEventInTx bool

	// BlockNumber is the block this update is associated with. The
	// orchestrator may rewrite it during the initial-sync phase.
	BlockNumber uint64
}

// IsSynthetic reports whether this update was produced by the
// synchronizer itself rather than observed in a live transaction.
func (u ComponentUpdate) IsSynthetic() bool {
	return u.TxHash == CacheTxHash
}
