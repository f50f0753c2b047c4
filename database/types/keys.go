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

package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	MemberKeyPrefix     = "mb"
	ServiceKeyPrefix    = "sv"
	CuratorKeyPrefix    = "rc"
	MonitorKeyPrefix    = "rm"
	AlertKeyPrefix      = "al"
	AlertIndexKeyPrefix = "ax"
	// PendingJournalKeyPrefix holds journal rows that committed with the blob
	// half of a transaction and are not yet confirmed in the metadata store
	PendingJournalKeyPrefix = "pj"

	// IndexGenerationKey holds the generation of the live alert index
	IndexGenerationKey = "xg"
	// ImportPendingKey is present while a state import is part way through
	ImportPendingKey = "xi"
	// CommitTimestampKey holds the blob half of the commit timestamp
	CommitTimestampKey = "xt"
)

// CollectionKeyPrefixes lists the prefixes of the stored registry
// collections. The alert index is derived from them
var CollectionKeyPrefixes = []string{
	MemberKeyPrefix,
	ServiceKeyPrefix,
	CuratorKeyPrefix,
	MonitorKeyPrefix,
	AlertKeyPrefix,
}

// AllKeyPrefixes lists every prefix and bookkeeping key in the blob store
var AllKeyPrefixes = []string{
	MemberKeyPrefix,
	ServiceKeyPrefix,
	CuratorKeyPrefix,
	MonitorKeyPrefix,
	AlertKeyPrefix,
	AlertIndexKeyPrefix,
	PendingJournalKeyPrefix,
	IndexGenerationKey,
	ImportPendingKey,
	CommitTimestampKey,
}

func MemberKey(id string) []byte {
	return append([]byte(MemberKeyPrefix), id...)
}

func ServiceKey(id string) []byte {
	return append([]byte(ServiceKeyPrefix), id...)
}

func CuratorKey(id string) []byte {
	return append([]byte(CuratorKeyPrefix), id...)
}

func MonitorKey(id string) []byte {
	return append([]byte(MonitorKeyPrefix), id...)
}

// AlertKey builds the primary alert key: prefix, length-prefixed monitor
// account and big-endian alert id
func AlertKey(monitor string, alertId uint64) []byte {
	key := []byte(AlertKeyPrefix)
	key = appendLengthPrefixed(key, monitor)
	key = binary.BigEndian.AppendUint64(key, alertId)
	return key
}

// AlertIndexGenerationPrefix is the prefix shared by every index entry of
// one generation
func AlertIndexGenerationPrefix(generation uint64) []byte {
	return binary.BigEndian.AppendUint64([]byte(AlertIndexKeyPrefix), generation)
}

// AlertIndexKey builds the derived index key for a (member, service, alert
// type) triple within an index generation. Each part is length-prefixed so
// that no two triples share an encoding
func AlertIndexKey(generation uint64, member, service, alertType string) []byte {
	key := AlertIndexGenerationPrefix(generation)
	key = appendLengthPrefixed(key, member)
	key = appendLengthPrefixed(key, service)
	key = appendLengthPrefixed(key, alertType)
	return key
}

// PendingJournalKey builds the marker key for a journal row awaiting the
// metadata store
func PendingJournalKey(id string) []byte {
	return append([]byte(PendingJournalKeyPrefix), id...)
}

// ParseAlertKey reverses AlertKey
func ParseAlertKey(key []byte) (string, uint64, error) {
	rest, ok := bytes.CutPrefix(key, []byte(AlertKeyPrefix))
	if !ok {
		return "", 0, fmt.Errorf("%w: missing alert prefix", ErrInvalidKey)
	}
	monitor, rest, err := readLengthPrefixed(rest)
	if err != nil {
		return "", 0, err
	}
	if len(rest) != 8 {
		return "", 0, fmt.Errorf("%w: bad alert id length", ErrInvalidKey)
	}
	return monitor, binary.BigEndian.Uint64(rest), nil
}

// ParseAlertIndexKey reverses AlertIndexKey
func ParseAlertIndexKey(
	key []byte,
) (generation uint64, member, service, alertType string, err error) {
	rest, ok := bytes.CutPrefix(key, []byte(AlertIndexKeyPrefix))
	if !ok {
		return 0, "", "", "", fmt.Errorf(
			"%w: missing alert index prefix",
			ErrInvalidKey,
		)
	}
	if len(rest) < 8 {
		return 0, "", "", "", fmt.Errorf("%w: short generation", ErrInvalidKey)
	}
	generation = binary.BigEndian.Uint64(rest)
	rest = rest[8:]
	parts := make([]string, 3)
	for i := range parts {
		parts[i], rest, err = readLengthPrefixed(rest)
		if err != nil {
			return 0, "", "", "", err
		}
	}
	if len(rest) != 0 {
		return 0, "", "", "", fmt.Errorf("%w: trailing bytes", ErrInvalidKey)
	}
	return generation, parts[0], parts[1], parts[2], nil
}

func appendLengthPrefixed(dst []byte, s string) []byte {
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(s))) // #nosec G115
	return append(dst, s...)
}

func readLengthPrefixed(data []byte) (string, []byte, error) {
	if len(data) < 2 {
		return "", nil, fmt.Errorf("%w: short length prefix", ErrInvalidKey)
	}
	size := int(binary.BigEndian.Uint16(data))
	data = data[2:]
	if len(data) < size {
		return "", nil, fmt.Errorf("%w: short value", ErrInvalidKey)
	}
	return string(data[:size]), data[size:], nil
}
