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
	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/roster/database"
	"github.com/blinklabs-io/roster/database/types"
)

// presenceMarker is the value stored for role set and index entries
var presenceMarker = []byte{0x01}

type memberRecord struct {
	cbor.StructAsArray
	Status uint8
	Level  uint8
}

type serviceRecord struct {
	cbor.StructAsArray
	ChainId string
	Type    uint8
	Level   uint8
	Status  uint8
}

type alertRecord struct {
	cbor.StructAsArray
	Member  string
	Service string
	Domain  string
	Type    string
}

func encodeMember(m Member) ([]byte, error) {
	return cbor.Encode(&memberRecord{
		Status: uint8(m.Status),
		Level:  uint8(m.Level),
	})
}

func decodeMember(id AccountId, data []byte) (Member, error) {
	var rec memberRecord
	if _, err := cbor.Decode(data, &rec); err != nil {
		return Member{}, err
	}
	return Member{
		Id:     id,
		Status: MemberStatus(rec.Status),
		Level:  MembershipLevel(rec.Level),
	}, nil
}

func encodeService(s Service) ([]byte, error) {
	return cbor.Encode(&serviceRecord{
		ChainId: string(s.ChainId),
		Type:    uint8(s.Type),
		Level:   uint8(s.Level),
		Status:  uint8(s.Status),
	})
}

func decodeService(id ServiceId, data []byte) (Service, error) {
	var rec serviceRecord
	if _, err := cbor.Decode(data, &rec); err != nil {
		return Service{}, err
	}
	return Service{
		Id:      id,
		ChainId: ChainId(rec.ChainId),
		Type:    ServiceType(rec.Type),
		Level:   MembershipLevel(rec.Level),
		Status:  ServiceStatus(rec.Status),
	}, nil
}

func encodeAlert(a Alert) ([]byte, error) {
	return cbor.Encode(&alertRecord{
		Member:  string(a.Member),
		Service: string(a.Service),
		Domain:  string(a.Domain),
		Type:    string(a.Type),
	})
}

func decodeAlert(key AlertKey, data []byte) (Alert, error) {
	var rec alertRecord
	if _, err := cbor.Decode(data, &rec); err != nil {
		return Alert{}, err
	}
	return Alert{
		Monitor: key.Monitor,
		AlertId: key.AlertId,
		Member:  AccountId(rec.Member),
		Service: ServiceId(rec.Service),
		Domain:  DomainId(rec.Domain),
		Type:    AlertType(rec.Type),
	}, nil
}

// The helpers below read and write records inside a transaction. Lookups
// return found=false rather than an error for a missing key

func getMember(txn *database.Txn, id AccountId) (Member, bool, error) {
	data, err := txn.Get(types.MemberKey(string(id)))
	if err != nil {
		if err == types.ErrBlobKeyNotFound { //nolint:errorlint
			return Member{}, false, nil
		}
		return Member{}, false, err
	}
	m, err := decodeMember(id, data)
	return m, err == nil, err
}

func putMember(txn *database.Txn, m Member) error {
	data, err := encodeMember(m)
	if err != nil {
		return err
	}
	return txn.Set(types.MemberKey(string(m.Id)), data)
}

func getService(txn *database.Txn, id ServiceId) (Service, bool, error) {
	data, err := txn.Get(types.ServiceKey(string(id)))
	if err != nil {
		if err == types.ErrBlobKeyNotFound { //nolint:errorlint
			return Service{}, false, nil
		}
		return Service{}, false, err
	}
	s, err := decodeService(id, data)
	return s, err == nil, err
}

func putService(txn *database.Txn, s Service) error {
	data, err := encodeService(s)
	if err != nil {
		return err
	}
	return txn.Set(types.ServiceKey(string(s.Id)), data)
}

func getAlert(txn *database.Txn, key AlertKey) (Alert, bool, error) {
	data, err := txn.Get(key.Bytes())
	if err != nil {
		if err == types.ErrBlobKeyNotFound { //nolint:errorlint
			return Alert{}, false, nil
		}
		return Alert{}, false, err
	}
	a, err := decodeAlert(key, data)
	return a, err == nil, err
}

func putAlert(txn *database.Txn, a Alert) error {
	data, err := encodeAlert(a)
	if err != nil {
		return err
	}
	return txn.Set(a.Key().Bytes(), data)
}

func scanMembers(txn *database.Txn) ([]Member, error) {
	prefix := []byte(types.MemberKeyPrefix)
	var ret []Member
	err := txn.Iterate(prefix, func(key, val []byte) error {
		m, err := decodeMember(AccountId(key[len(prefix):]), val)
		if err != nil {
			return err
		}
		ret = append(ret, m)
		return nil
	})
	return ret, err
}

func scanServices(txn *database.Txn) ([]Service, error) {
	prefix := []byte(types.ServiceKeyPrefix)
	var ret []Service
	err := txn.Iterate(prefix, func(key, val []byte) error {
		s, err := decodeService(ServiceId(key[len(prefix):]), val)
		if err != nil {
			return err
		}
		ret = append(ret, s)
		return nil
	})
	return ret, err
}

func scanAlerts(txn *database.Txn) ([]Alert, error) {
	var ret []Alert
	err := txn.Iterate(
		[]byte(types.AlertKeyPrefix),
		func(key, val []byte) error {
			k, err := ParseAlertKeyBytes(key)
			if err != nil {
				return err
			}
			a, err := decodeAlert(k, val)
			if err != nil {
				return err
			}
			ret = append(ret, a)
			return nil
		},
	)
	return ret, err
}

func scanAccounts(txn *database.Txn, prefix string) ([]AccountId, error) {
	keys, err := txn.Keys([]byte(prefix))
	if err != nil {
		return nil, err
	}
	ret := make([]AccountId, 0, len(keys))
	for _, key := range keys {
		ret = append(ret, AccountId(key[len(prefix):]))
	}
	return ret, nil
}
