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
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/blinklabs-io/roster/database"
)

// MemberStore holds member records and their status and level
type MemberStore struct {
	r *Registry
}

// Get returns the member record for id
func (s *MemberStore) Get(id AccountId) (Member, error) {
	var m Member
	err := s.r.view(func(txn *database.Txn) error {
		var found bool
		var err error
		m, found, err = getMember(txn, id)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrMemberNotFound, id)
		}
		return nil
	})
	return m, err
}

// List returns every member ordered by id
func (s *MemberStore) List() ([]Member, error) {
	var ret []Member
	err := s.r.view(func(txn *database.Txn) error {
		var err error
		ret, err = scanMembers(txn)
		return err
	})
	slices.SortFunc(ret, func(a, b Member) int {
		return strings.Compare(string(a.Id), string(b.Id))
	})
	return ret, err
}

// Register creates a Locked member with no level for the signing account
func (s *MemberStore) Register(ctx context.Context, origin Origin) error {
	return s.r.mutate(ctx, "register_member", func(txn *database.Txn) (notification, error) {
		caller, err := ensureSigned(origin)
		if err != nil {
			return notification{}, err
		}
		_, found, err := getMember(txn, caller)
		if err != nil {
			return notification{}, err
		}
		if found {
			return notification{}, fmt.Errorf("%w: member %s", ErrAlreadyExists, caller)
		}
		m := Member{Id: caller, Status: MemberLocked, Level: LevelNone}
		if err := putMember(txn, m); err != nil {
			return notification{}, err
		}
		return notification{
			eventType: MemberRegisteredEventType,
			subject:   string(caller),
			data: MemberRegisteredEvent{
				Member: m.Id,
				Status: m.Status,
				Level:  m.Level,
			},
		}, nil
	})
}

// Chill moves the signing member to Chilled. Locked and Deleted members
// cannot chill
func (s *MemberStore) Chill(ctx context.Context, origin Origin) error {
	return s.selfTransition(ctx, "chill_member", origin, func(cur MemberStatus) bool {
		return cur != MemberLocked && cur != MemberDeleted
	}, MemberChilled)
}

// Unchill moves the signing member from Chilled to Active
func (s *MemberStore) Unchill(ctx context.Context, origin Origin) error {
	return s.selfTransition(ctx, "unchill_member", origin, func(cur MemberStatus) bool {
		return cur == MemberChilled
	}, MemberActive)
}

// Lock moves target to Locked unless it is Deleted
func (s *MemberStore) Lock(ctx context.Context, origin Origin, target AccountId) error {
	return s.curatorTransition(ctx, "lock_member", origin, target, func(cur MemberStatus) bool {
		return cur != MemberDeleted
	}, MemberLocked)
}

// Unlock moves target from Locked to Active
func (s *MemberStore) Unlock(ctx context.Context, origin Origin, target AccountId) error {
	return s.curatorTransition(ctx, "unlock_member", origin, target, func(cur MemberStatus) bool {
		return cur == MemberLocked
	}, MemberActive)
}

// Delete moves target to Deleted from any status
func (s *MemberStore) Delete(ctx context.Context, origin Origin, target AccountId) error {
	return s.curatorTransition(ctx, "delete_member", origin, target, func(MemberStatus) bool {
		return true
	}, MemberDeleted)
}

// Undelete moves target out of Deleted, to the status chosen with
// WithUndeleteStatus
func (s *MemberStore) Undelete(ctx context.Context, origin Origin, target AccountId) error {
	return s.curatorTransition(ctx, "undelete_member", origin, target, func(cur MemberStatus) bool {
		return cur == MemberDeleted
	}, s.r.undeleteStatus.memberStatus())
}

// UpdateLevel sets the level of target
func (s *MemberStore) UpdateLevel(
	ctx context.Context,
	origin Origin,
	target AccountId,
	level MembershipLevel,
) error {
	return s.r.mutate(ctx, "update_member_level", func(txn *database.Txn) (notification, error) {
		if _, err := requireCurator(txn, origin); err != nil {
			return notification{}, err
		}
		if err := validateAccountId(target); err != nil {
			return notification{}, err
		}
		if err := validateLevel(level); err != nil {
			return notification{}, err
		}
		m, err := mustGetMember(txn, target)
		if err != nil {
			return notification{}, err
		}
		prev := m.Level
		m.Level = level
		if err := putMember(txn, m); err != nil {
			return notification{}, err
		}
		return notification{
			eventType: MemberLevelUpdatedEventType,
			subject:   string(target),
			data: MemberLevelUpdatedEvent{
				Member:   target,
				Previous: prev,
				Current:  level,
			},
		}, nil
	})
}

func (s *MemberStore) selfTransition(
	ctx context.Context,
	op string,
	origin Origin,
	allowed func(MemberStatus) bool,
	next MemberStatus,
) error {
	return s.r.mutate(ctx, op, func(txn *database.Txn) (notification, error) {
		caller, err := ensureSigned(origin)
		if err != nil {
			return notification{}, err
		}
		return applyMemberStatus(txn, caller, allowed, next)
	})
}

func (s *MemberStore) curatorTransition(
	ctx context.Context,
	op string,
	origin Origin,
	target AccountId,
	allowed func(MemberStatus) bool,
	next MemberStatus,
) error {
	return s.r.mutate(ctx, op, func(txn *database.Txn) (notification, error) {
		if _, err := requireCurator(txn, origin); err != nil {
			return notification{}, err
		}
		if err := validateAccountId(target); err != nil {
			return notification{}, err
		}
		return applyMemberStatus(txn, target, allowed, next)
	})
}

func mustGetMember(txn *database.Txn, id AccountId) (Member, error) {
	m, found, err := getMember(txn, id)
	if err != nil {
		return Member{}, err
	}
	if !found {
		return Member{}, fmt.Errorf("%w: %s", ErrMemberNotFound, id)
	}
	return m, nil
}

func applyMemberStatus(
	txn *database.Txn,
	id AccountId,
	allowed func(MemberStatus) bool,
	next MemberStatus,
) (notification, error) {
	m, err := mustGetMember(txn, id)
	if err != nil {
		return notification{}, err
	}
	if !allowed(m.Status) {
		return notification{}, fmt.Errorf(
			"%w: member %s is %s",
			ErrInvalidTransition,
			id,
			m.Status,
		)
	}
	prev := m.Status
	m.Status = next
	if err := putMember(txn, m); err != nil {
		return notification{}, err
	}
	return notification{
		eventType: MemberStatusUpdatedEventType,
		subject:   string(id),
		data: MemberStatusUpdatedEvent{
			Member:   id,
			Previous: prev,
			Current:  next,
		},
	}, nil
}
