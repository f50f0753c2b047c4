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


package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/blinklabs-io/roster/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("ROSTER_DATABASE_PATH", filepath.Join(dir, "db"))
	return dir
}

func TestMemberLifecycle(t *testing.T) {
	setupEnv(t)

	_, err := runCommand(t, "curator", "assign", "carol")
	require.NoError(t, err)
	_, err = runCommand(t, "member", "register", "--as", "alice")
	require.NoError(t, err)
	_, err = runCommand(t, "member", "level", "alice", "3", "--as", "carol")
	require.NoError(t, err)

	out, err := runCommand(t, "member", "get", "alice")
	require.NoError(t, err)
	var m registry.Member
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Equal(t, registry.Member{
		Id:     "alice",
		Status: registry.MemberLocked,
		Level:  3,
	}, m)

	// Unlock needs a curator
	_, err = runCommand(t, "member", "unlock", "alice", "--as", "alice")
	require.ErrorIs(t, err, registry.ErrNotACurator)
	_, err = runCommand(t, "member", "unlock", "alice", "--as", "carol")
	require.NoError(t, err)

	out, err = runCommand(t, "journal", "--type", string(registry.MemberRegisteredEventType))
	require.NoError(t, err)
	var entries []journalEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].Subject)
}

func TestOriginFlagsExclusive(t *testing.T) {
	setupEnv(t)
	_, err := runCommand(t, "member", "register", "--as", "alice", "--root")
	require.Error(t, err)
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := setupEnv(t)
	url := "file://" + filepath.Join(dir, "snapshots")

	// Imports require at least one curator
	_, err := runCommand(t, "curator", "assign", "carol")
	require.NoError(t, err)
	_, err = runCommand(t, "member", "register", "--as", "alice")
	require.NoError(t, err)
	name, err := runCommand(t, "snapshot", "export", "--url", url)
	require.NoError(t, err)
	require.NotEmpty(t, name)

	_, err = runCommand(t, "member", "register", "--as", "bob")
	require.NoError(t, err)
	_, err = runCommand(t, "snapshot", "import", "--url", url, "--root")
	require.NoError(t, err)

	out, err := runCommand(t, "member", "list")
	require.NoError(t, err)
	var members []registry.Member
	require.NoError(t, json.Unmarshal([]byte(out), &members))
	require.Len(t, members, 1)
	assert.Equal(t, registry.AccountId("alice"), members[0].Id)
}

func TestIndexVerify(t *testing.T) {
	setupEnv(t)
	out, err := runCommand(t, "index", "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "Missing")
}

func TestList(t *testing.T) {
	setupEnv(t)
	out, err := runCommand(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "badger")
	assert.Contains(t, out, "sqlite")
	assert.Contains(t, out, "s3")
}
