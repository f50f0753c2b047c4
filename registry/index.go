// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package registry

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/blinklabs-io/roster/database"
	"github.com/blinklabs-io/roster/database/types"
)

// The alert index lives in numbered generations. Lookups use the live
// generation, named by types.IndexGenerationKey. A rebuild writes the next
// generation in batches beside the live one and then switches to it in one
// small transaction, so readers never see a partly built index

func indexGeneration(txn *database.Txn) (uint64, error) {
	val, err := txn.Get([]byte(types.IndexGenerationKey))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if len(val) != 8 {
		return 0, fmt.Errorf("%w: index generation", types.ErrInvalidKey)
	}
	return binary.BigEndian.Uint64(val), nil
}

func setIndexGeneration(txn *database.Txn, generation uint64) error {
	return txn.Set(
		[]byte(types.IndexGenerationKey),
		binary.BigEndian.AppendUint64(nil, generation),
	)
}

// liveIndex is the live index generation as seen by one transaction
type liveIndex struct {
	txn        *database.Txn
	generation uint64
}

func openIndex(txn *database.Txn) (liveIndex, error) {
	generation, err := indexGeneration(txn)
	return liveIndex{txn: txn, generation: generation}, err
}

func (ix liveIndex) has(key AlertIndexKey) (bool, error) {
	return ix.txn.Has(key.Bytes(ix.generation))
}

func (ix liveIndex) add(key AlertIndexKey) error {
	return ix.txn.Set(key.Bytes(ix.generation), presenceMarker)
}

func (ix liveIndex) remove(key AlertIndexKey) error {
	return ix.txn.Delete(key.Bytes(ix.generation))
}

func (ix liveIndex) keys() ([]AlertIndexKey, error) {
	keys, err := ix.txn.Keys(types.AlertIndexGenerationPrefix(ix.generation))
	if err != nil {
		return nil, err
	}
	ret := make([]AlertIndexKey, 0, len(keys))
	for _, key := range keys {
		k, _, err := ParseAlertIndexKeyBytes(key)
		if err != nil {
			return nil, err
		}
		ret = append(ret, k)
	}
	return ret, nil
}

// indexBuild is a generation written next to the live one
type indexBuild struct {
	live    uint64
	next    uint64
	retired int
	entries int
}

// buildIndexGeneration writes one entry per distinct key of alerts into the
// generation after the live one. Entries of any other generation are left
// from an interrupted build and are dropped first. The caller holds r.mu
func (r *Registry) buildIndexGeneration(
	ctx context.Context,
	alerts []Alert,
) (indexBuild, error) {
	var b indexBuild
	var leftovers [][]byte
	err := r.db.View(func(txn *database.Txn) error {
		var err error
		if b.live, err = indexGeneration(txn); err != nil {
			return err
		}
		keys, err := txn.Keys([]byte(types.AlertIndexKeyPrefix))
		if err != nil {
			return err
		}
		livePrefix := types.AlertIndexGenerationPrefix(b.live)
		for _, key := range keys {
			if bytes.HasPrefix(key, livePrefix) {
				b.retired++
			} else {
				leftovers = append(leftovers, key)
			}
		}
		return nil
	})
	if err != nil {
		return indexBuild{}, err
	}
	if len(leftovers) > 0 {
		r.logger.Info("dropping stale alert index entries", "entries", len(leftovers))
		if err := writeBatches(ctx, r, leftovers, deleteKey); err != nil {
			return indexBuild{}, err
		}
	}
	b.next = b.live + 1
	seen := make(map[AlertIndexKey]struct{}, len(alerts))
	keys := make([]AlertIndexKey, 0, len(alerts))
	for _, alert := range alerts {
		key := alert.IndexKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	err = writeBatches(ctx, r, keys, func(txn *database.Txn, key AlertIndexKey) error {
		return txn.Set(key.Bytes(b.next), presenceMarker)
	})
	if err != nil {
		return indexBuild{}, err
	}
	b.entries = len(keys)
	return b, nil
}

// dropIndexGeneration deletes a retired generation in batches. Whatever it
// leaves behind is cleared by the next build
func (r *Registry) dropIndexGeneration(ctx context.Context, generation uint64) {
	var keys [][]byte
	err := r.db.View(func(txn *database.Txn) error {
		var err error
		keys, err = txn.Keys(types.AlertIndexGenerationPrefix(generation))
		return err
	})
	if err == nil {
		err = writeBatches(ctx, r, keys, deleteKey)
	}
	if err != nil {
		r.logger.Warn(
			"failed to drop retired alert index generation",
			"generation", generation,
			"error", err,
		)
	}
}

func deleteKey(txn *database.Txn, key []byte) error {
	return txn.Delete(key)
}
