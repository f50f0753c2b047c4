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

import "errors"

// Kind classifies registry errors
type Kind uint8

const (
	KindUnknown Kind = iota
	KindAuthorization
	KindNotFound
	KindStateConflict
	KindCapacity
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindStateConflict:
		return "state_conflict"
	case KindCapacity:
		return "capacity"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error is a guard failure. Every guard fires before any write, so an
// operation that returns an Error has changed nothing
type Error struct {
	name string
	kind Kind
}

func (e *Error) Error() string {
	return e.name
}

func (e *Error) Kind() Kind {
	return e.kind
}

var (
	ErrNotACurator     = &Error{"not a curator", KindAuthorization}
	ErrNotAMonitor     = &Error{"not a monitor", KindAuthorization}
	ErrNotAuthorized   = &Error{"not authorized", KindAuthorization}
	ErrUnauthenticated = &Error{"unauthenticated", KindAuthorization}

	ErrMemberNotFound  = &Error{"member not found", KindNotFound}
	ErrServiceNotFound = &Error{"service not found", KindNotFound}
	ErrAlertNotFound   = &Error{"alert not found", KindNotFound}

	ErrAlreadyExists     = &Error{"already exists", KindStateConflict}
	ErrAlreadyCurator    = &Error{"already a curator", KindStateConflict}
	ErrDuplicateAlert    = &Error{"duplicate alert", KindStateConflict}
	ErrInvalidTransition = &Error{"invalid status transition", KindStateConflict}
	ErrMemberNotActive   = &Error{"member not active", KindStateConflict}
	ErrServiceNotActive  = &Error{"service not active", KindStateConflict}
	// ErrImportIncomplete is returned by everything but ImportState after a
	// state import stopped part way. Importing a state again clears it
	ErrImportIncomplete = &Error{"state import incomplete", KindStateConflict}

	ErrCuratorLimitReached     = &Error{"curator limit reached", KindCapacity}
	ErrCannotRemoveLastCurator = &Error{"cannot remove last curator", KindCapacity}

	ErrInvalidArgument = &Error{"invalid argument", KindValidation}
)

// KindOf returns the Kind of the registry error wrapped in err, or
// KindUnknown for anything else, including storage failures
func KindOf(err error) Kind {
	var regErr *Error
	if errors.As(err, &regErr) {
		return regErr.kind
	}
	return KindUnknown
}
