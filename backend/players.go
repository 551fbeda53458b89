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
	"encoding/binary"
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

// Player is a known member of the server.
type Player struct {
	Username string
	ID       uuid.UUID
}

// AvatarURL is the head avatar shown in the player picker.
func (p Player) AvatarURL() string {
	return avatarHeadURL + url.PathEscape(p.Username)
}

// BodyURL is the full body render shown on the player view.
func (p Player) BodyURL() string {
	return avatarBodyURL + url.PathEscape(p.Username)
}

// Directory is a fixed, ordered lookup table of players.
type Directory struct {
	players []Player
	byName  map[string]int
	byID    map[uuid.UUID]int
}

// NewDirectory returns a directory over the given players, in order.
// Later duplicates of a username or ID are ignored.
func NewDirectory(players []Player) *Directory {
	d := &Directory{
		players: make([]Player, 0, len(players)),
		byName:  make(map[string]int, len(players)),
		byID:    make(map[uuid.UUID]int, len(players)),
	}
	for _, p := range players {
		if _, ok := d.byName[p.Username]; ok {
			continue
		}
		if _, ok := d.byID[p.ID]; ok {
			continue
		}
		d.byName[p.Username] = len(d.players)
		d.byID[p.ID] = len(d.players)
		d.players = append(d.players, p)
	}
	return d
}

// Players returns the players in directory order.
func (d *Directory) Players() []Player {
	out := make([]Player, len(d.players))
	copy(out, d.players)
	return out
}

// Len returns the number of players.
func (d *Directory) Len() int {
	return len(d.players)
}

// Lookup finds a player by username.
func (d *Directory) Lookup(username string) (Player, bool) {
	i, ok := d.byName[username]
	if !ok {
		return Player{}, false
	}
	return d.players[i], true
}

// LookupID finds a player by UUID.
func (d *Directory) LookupID(id uuid.UUID) (Player, bool) {
	i, ok := d.byID[id]
	if !ok {
		return Player{}, false
	}
	return d.players[i], true
}

// Username returns the username for id, or the UUID string when the player
// is not in the directory.
func (d *Directory) Username(id uuid.UUID) string {
	if p, ok := d.LookupID(id); ok {
		return p.Username
	}
	return id.String()
}

// UUIDFromIntArray converts the four big-endian int32 words used by world
// data into a UUID.
func UUIDFromIntArray(a [4]int32) uuid.UUID {
	var id uuid.UUID
	for i, v := range a {
		binary.BigEndian.PutUint32(id[i*4:], uint32(v))
	}
	return id
}

// IntArrayFromUUID is the inverse of UUIDFromIntArray.
func IntArrayFromUUID(id uuid.UUID) [4]int32 {
	var a [4]int32
	for i := range a {
		a[i] = int32(binary.BigEndian.Uint32(id[i*4:]))
	}
	return a
}

// IntArrayFromInts validates a decoded JSON array as an IntArray.
func IntArrayFromInts(v []int64) ([4]int32, error) {
	var a [4]int32
	if len(v) != 4 {
		return a, fmt.Errorf("expected an array of four 32-bit integers, got %d", len(v))
	}
	for i, n := range v {
		// Accept both signed and unsigned renderings of a 32-bit word.
		if n < -1<<31 || n > 1<<32-1 {
			return a, fmt.Errorf("value %d at %d is not a 32-bit integer", n, i)
		}
		a[i] = int32(uint32(n))
	}
	return a, nil
}

var defaultPlayers = []Player{
	{"AtlasV1224", uuid.MustParse("7c7518ea-d77c-401e-805e-3fecb9d3f888")},
	{"tlitookilakin", uuid.MustParse("8ee61ef3-1eee-4867-96c6-c9ee708cd1ea")},
	{"Pinkmoney", uuid.MustParse("8fa2d575-05fe-4af0-a62f-d8493aecae66")},
	{"kittycatcasey", uuid.MustParse("9beee7d5-6f24-45b4-acf2-bcd3cab184a2")},
	{"DecidedlyHuman", uuid.MustParse("83caec38-58b8-4d24-95ec-209eefc8ce73")},
	{"Erinthe", uuid.MustParse("246bc0d1-c5f6-418e-baaf-a9b632ace079")},
	{"Super_MrSpring", uuid.MustParse("2886d944-b171-413f-ad25-4d5f27ee46ed")},
	{"Spiderbuttons", uuid.MustParse("07304b7d-1ab9-49ea-9995-35fba7b17e4a")},
	{"Xeragene", uuid.MustParse("7746f2d4-a4d7-4d6a-bb59-82ad6ecd6725")},
	{"shekurika", uuid.MustParse("051295fe-8aec-44aa-84c6-f9b6eea8245c")},
	{"KhloeLeclair", uuid.MustParse("41481473-e075-4896-adcd-0e91c89606df")},
	{"pneuma163", uuid.MustParse("55725902-ad5d-4a1f-9ee3-3e3c61f6102a")},
	{"TheFrenchDodo", uuid.MustParse("b279d81d-dd25-418f-b78c-6ae7282d26c5")},
	{"ScarletCraft", uuid.MustParse("d1a2643a-fd66-4af6-81f4-1b7b8cd86653")},
	{"skellady", uuid.MustParse("ddbd74b6-8302-4f93-ae1d-9ca8db5000a0")},
	{"Pil_", uuid.MustParse("e054b62a-e6d7-475d-8fae-a4ebf98c8519")},
	{"SinZ", uuid.MustParse("e0989ba6-7eee-4ad1-9c49-88fc6db8e7e5")},
	{"LeFauxMatt", uuid.MustParse("ec1b0b30-782d-44ec-8e06-79def1444c26")},
}

// DefaultDirectory returns the players of the server.
func DefaultDirectory() *Directory {
	return NewDirectory(defaultPlayers)
}
