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

import "fmt"

type originKind uint8

const (
	originNone originKind = iota
	originSigned
	originRoot
)

// Origin is the already-authenticated identity of a caller, as supplied by
// the host
type Origin struct {
	account AccountId
	kind    originKind
}

// Signed returns the origin of a call signed by account
func Signed(account AccountId) Origin {
	return Origin{kind: originSigned, account: account}
}

// Root returns the privileged origin
func Root() Origin {
	return Origin{kind: originRoot}
}

// None returns the origin of an unsigned call
func None() Origin {
	return Origin{}
}

func (o Origin) String() string {
	switch o.kind {
	case originSigned:
		return fmt.Sprintf("signed(%s)", o.account)
	case originRoot:
		return "root"
	default:
		return "none"
	}
}

// Account returns the signing account, if any
func (o Origin) Account() (AccountId, bool) {
	return o.account, o.kind == originSigned
}

func ensureSigned(o Origin) (AccountId, error) {
	if o.kind != originSigned {
		return "", ErrUnauthenticated
	}
	if err := validateAccountId(o.account); err != nil {
		return "", err
	}
	return o.account, nil
}

func ensureRoot(o Origin) error {
	switch o.kind {
	case originRoot:
		return nil
	case originSigned:
		return ErrNotAuthorized
	default:
		return ErrUnauthenticated
	}
}
