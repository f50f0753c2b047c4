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

package sops_test

import (
	"testing"

	"github.com/blinklabs-io/roster/snapshot/sops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptRequiresMasterKey(t *testing.T) {
	t.Setenv(sops.EnvGCPKMSResourceID, "")
	t.Setenv(sops.EnvAWSKMSKeyARNs, "")
	_, err := sops.Encrypt([]byte(`{"members":[]}`))
	require.ErrorIs(t, err, sops.ErrNoMasterKeys)
}

func TestEncryptRejectsSopsDocument(t *testing.T) {
	_, err := sops.Encrypt([]byte(`{"data":"ENC[...]","sops":{}}`))
	require.ErrorIs(t, err, sops.ErrAlreadyEncrypted)
}

func TestIsEncrypted(t *testing.T) {
	assert.True(t, sops.IsEncrypted([]byte(`{"data":"x","sops":{"version":"3"}}`)))
	assert.False(t, sops.IsEncrypted([]byte(`{"members":[]}`)))
	assert.False(t, sops.IsEncrypted([]byte(`not json`)))
	assert.False(t, sops.IsEncrypted([]byte(`["sops"]`)))
}
