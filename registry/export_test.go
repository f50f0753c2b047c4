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

import "github.com/blinklabs-io/roster/database"

// LiveIndexKey returns the storage key of key in the live index generation
func LiveIndexKey(txn *database.Txn, key AlertIndexKey) ([]byte, error) {
	generation, err := indexGeneration(txn)
	if err != nil {
		return nil, err
	}
	return key.Bytes(generation), nil
}

// IndexGeneration returns the live index generation
func IndexGeneration(txn *database.Txn) (uint64, error) {
	return indexGeneration(txn)
}
