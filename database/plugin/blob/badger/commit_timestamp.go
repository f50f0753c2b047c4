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

package badger

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/blinklabs-io/roster/database/types"
)

var errBadCommitTimestamp = errors.New("malformed commit timestamp")

// GetCommitTimestamp returns the timestamp written by the last coordinated
// commit, or types.ErrBlobKeyNotFound if there has been none
func (d *BlobStoreBadger) GetCommitTimestamp() (int64, error) {
	txn := d.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck

	val, err := d.Get(txn, []byte(types.CommitTimestampKey))
	if err != nil {
		return 0, err
	}
	if len(val) != 8 {
		return 0, fmt.Errorf("%w: %d bytes", errBadCommitTimestamp, len(val))
	}
	return int64(binary.BigEndian.Uint64(val)), nil // #nosec G115
}

// SetCommitTimestamp records timestamp in txn. It is committed with the
// registry writes it stamps
func (d *BlobStoreBadger) SetCommitTimestamp(
	timestamp int64,
	txn types.Txn,
) error {
	if txn == nil {
		return types.ErrNilTxn
	}
	return d.Set(
		txn,
		[]byte(types.CommitTimestampKey),
		binary.BigEndian.AppendUint64(nil, uint64(timestamp)), // #nosec G115
	)
}
