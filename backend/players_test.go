// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"testing"

	"github.com/google/uuid"
)

func TestDefaultDirectory(t *testing.T) {
	dir := DefaultDirectory()
	if got := dir.Len(); got != 18 {
		t.Fatalf("Len = %d, want 18", got)
	}
	players := dir.Players()
	if players[0].Username != "AtlasV1224" || players[17].Username != "LeFauxMatt" {
		t.Errorf("order = %s..%s", players[0].Username, players[17].Username)
	}

	p, ok := dir.Lookup("SinZ")
	if !ok {
		t.Fatal("SinZ not found")
	}
	if want := uuid.MustParse("e0989ba6-7eee-4ad1-9c49-88fc6db8e7e5"); p.ID != want {
		t.Errorf("SinZ = %v, want %v", p.ID, want)
	}
	if back, ok := dir.LookupID(p.ID); !ok || back.Username != "SinZ" {
		t.Errorf("LookupID = %v, %v", back, ok)
	}
	if _, ok := dir.Lookup("sinz"); ok {
		t.Error("lookup is case insensitive")
	}

	if got := p.AvatarURL(); got != "https://crafthead.net/avatar/SinZ" {
		t.Errorf("AvatarURL = %q", got)
	}
	if got := p.BodyURL(); got != "https://crafthead.net/armor/body/SinZ" {
		t.Errorf("BodyURL = %q", got)
	}

	// Players returns a copy.
	players[0].Username = "changed"
	if dir.Players()[0].Username != "AtlasV1224" {
		t.Error("Players() exposes the directory")
	}
}

func TestNewDirectoryDuplicates(t *testing.T) {
	a := uuid.MustParse("11111111-1111-4111-8111-111111111111")
	b := uuid.MustParse("22222222-2222-4222-8222-222222222222")
	dir := NewDirectory([]Player{
		{"alpha", a},
		{"alpha", b},
		{"beta", a},
		{"gamma", b},
	})
	if got := dir.Len(); got != 2 {
		t.Fatalf("Len = %d, want 2", got)
	}
	if p, _ := dir.LookupID(b); p.Username != "gamma" {
		t.Errorf("LookupID(b) = %q, want gamma", p.Username)
	}
}

func TestUsernameFallback(t *testing.T) {
	dir := DefaultDirectory()
	unknown := uuid.MustParse("33333333-3333-4333-8333-333333333333")
	if got := dir.Username(unknown); got != unknown.String() {
		t.Errorf("Username(unknown) = %q", got)
	}
	p, _ := dir.Lookup("Erinthe")
	if got := dir.Username(p.ID); got != "Erinthe" {
		t.Errorf("Username = %q", got)
	}
}

func TestIntArray(t *testing.T) {
	id := uuid.MustParse("7c7518ea-d77c-401e-805e-3fecb9d3f888")
	want := [4]int32{0x7c7518ea, -(0x100000000 - 0xd77c401e), -(0x100000000 - 0x805e3fec), -(0x100000000 - 0xb9d3f888)}

	if got := IntArrayFromUUID(id); got != want {
		t.Errorf("IntArrayFromUUID = %v, want %v", got, want)
	}
	if got := UUIDFromIntArray(want); got != id {
		t.Errorf("UUIDFromIntArray = %v, want %v", got, id)
	}

	tests := []struct {
		name    string
		in      []int64
		wantErr bool
	}{
		{"Signed", []int64{int64(want[0]), int64(want[1]), int64(want[2]), int64(want[3])}, false},
		{"Unsigned", []int64{0x7c7518ea, 0xd77c401e, 0x805e3fec, 0xb9d3f888}, false},
		{"TooShort", []int64{1, 2, 3}, true},
		{"TooLong", []int64{1, 2, 3, 4, 5}, true},
		{"OutOfRange", []int64{1 << 33, 0, 0, 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IntArrayFromInts(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != want {
				t.Errorf("IntArrayFromInts = %v, want %v", got, want)
			}
		})
	}
}
