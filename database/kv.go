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

package database

import (
	"github.com/blinklabs-io/roster/database/types"
)

// Get returns the value stored under key, or types.ErrBlobKeyNotFound
func (t *Txn) Get(key []byte) ([]byte, error) {
	if t.blobTxn == nil {
		return nil, types.ErrBlobStoreUnavailable
	}
	return t.db.Blob().Get(t.blobTxn, key)
}

// Has reports whether key is present
func (t *Txn) Has(key []byte) (bool, error) {
	_, err := t.Get(key)
	if err != nil {
		if err == types.ErrBlobKeyNotFound { //nolint:errorlint
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Set stores val under key
func (t *Txn) Set(key, val []byte) error {
	if t.blobTxn == nil {
		return types.ErrBlobStoreUnavailable
	}
	if !t.readWrite {
		return types.ErrReadOnlyTxn
	}
	return t.db.Blob().Set(t.blobTxn, key, val)
}

// Delete removes key. Deleting a missing key is not an error
func (t *Txn) Delete(key []byte) error {
	if t.blobTxn == nil {
		return types.ErrBlobStoreUnavailable
	}
	if !t.readWrite {
		return types.ErrReadOnlyTxn
	}
	return t.db.Blob().Delete(t.blobTxn, key)
}

// Iterate calls fn for every key with the given prefix, in key order. The
// key and value slices are copies and may be retained
func (t *Txn) Iterate(prefix []byte, fn func(key, val []byte) error) error {
	if t.blobTxn == nil {
		return types.ErrBlobStoreUnavailable
	}
	iter := t.db.Blob().NewIterator(
		t.blobTxn,
		types.BlobIteratorOptions{Prefix: prefix},
	)
	defer iter.Close()
	for iter.Rewind(); iter.ValidForPrefix(prefix); iter.Next() {
		item := iter.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(item.Key(), val); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Keys returns every key with the given prefix, in key order
func (t *Txn) Keys(prefix []byte) ([][]byte, error) {
	if t.blobTxn == nil {
		return nil, types.ErrBlobStoreUnavailable
	}
	iter := t.db.Blob().NewIterator(
		t.blobTxn,
		types.BlobIteratorOptions{Prefix: prefix, KeysOnly: true},
	)
	defer iter.Close()
	var ret [][]byte
	for iter.Rewind(); iter.ValidForPrefix(prefix); iter.Next() {
		ret = append(ret, iter.Item().Key())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}
