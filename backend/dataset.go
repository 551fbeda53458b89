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
	"errors"
	"math"
	"time"

	"github.com/tidwall/gjson"
)

var errInvalidJSON = errors.New("invalid JSON")

// LootTableCount is the number of times a player opened containers of one
// loot table.
type LootTableCount struct {
	Table string `json:"table"`
	Count int64  `json:"count"`
}

// LootrCounts is the content of lootrCount.json.
type LootrCounts struct {
	LootrTotal int64                       `json:"lootrTotal"`
	Total      map[string]int64            `json:"total"`
	ByTable    map[string][]LootTableCount `json:"byTable"` // source document order
}

// MiscStats is the content of misc.json.
type MiscStats struct {
	DaysPlayedIRL   float64 `json:"daysPlayedIRL"`
	PlayerCount     int64   `json:"playerCount"`
	DaysPlayed      float64 `json:"daysPlayed"`
	TotalDistanceCM float64 `json:"totalDistanceCM"`
}

// Dataset is one loaded version of the Season 1 statistics.
type Dataset struct {
	Version  uint64           `json:"version"`
	LoadedAt time.Time        `json:"loadedAt"`
	Deaths   map[string]int64 `json:"deaths"`
	Lootr    LootrCounts      `json:"lootr"`
	Misc     MiscStats        `json:"misc"`
}

// DecodeDeaths decodes a flat username -> count map.
func DecodeDeaths(data []byte) (map[string]int64, error) {
	if !gjson.ValidBytes(data) {
		return nil, errInvalidJSON
	}
	out := make(map[string]int64)
	gjson.ParseBytes(data).ForEach(func(key, value gjson.Result) bool {
		out[key.String()] = value.Int()
		return true
	})
	return out, nil
}

// DecodeLootr decodes lootrCount.json. Loot tables keep the order in which
// they appear in the document.
func DecodeLootr(data []byte) (LootrCounts, error) {
	lc := LootrCounts{
		Total:   make(map[string]int64),
		ByTable: make(map[string][]LootTableCount),
	}
	if !gjson.ValidBytes(data) {
		return lc, errInvalidJSON
	}
	doc := gjson.ParseBytes(data)
	lc.LootrTotal = doc.Get("lootrTotal").Int()
	doc.Get("Total").ForEach(func(user, n gjson.Result) bool {
		lc.Total[user.String()] = n.Int()
		return true
	})
	doc.Get("ByTable").ForEach(func(user, tables gjson.Result) bool {
		entries := make([]LootTableCount, 0)
		tables.ForEach(func(table, n gjson.Result) bool {
			entries = append(entries, LootTableCount{Table: table.String(), Count: n.Int()})
			return true
		})
		lc.ByTable[user.String()] = entries
		return true
	})
	return lc, nil
}

// DecodeMisc decodes misc.json. Absent fields are zero.
func DecodeMisc(data []byte) (MiscStats, error) {
	if !gjson.ValidBytes(data) {
		return MiscStats{}, errInvalidJSON
	}
	doc := gjson.ParseBytes(data)
	return MiscStats{
		DaysPlayedIRL:   doc.Get("daysPlayedIRL").Float(),
		PlayerCount:     doc.Get("playerCount").Int(),
		DaysPlayed:      doc.Get("daysPlayed").Float(),
		TotalDistanceCM: doc.Get("totalDistanceCM").Float(),
	}, nil
}

// GlobalStats are the server-wide numbers of the global view.
type GlobalStats struct {
	DaysPlayedIRL  int64
	PlayerCount    int64
	DaysPlayed     int64
	Deaths         int64
	DistanceBlocks int64
	LootrOpened    int64
}

// ComputeGlobal derives the global view numbers. Deaths are summed over the
// players of dir only. A nil dataset yields zeros.
func ComputeGlobal(ds *Dataset, dir *Directory) GlobalStats {
	if ds == nil {
		return GlobalStats{}
	}
	g := GlobalStats{
		DaysPlayedIRL: int64(math.Floor(ds.Misc.DaysPlayedIRL)),
		PlayerCount:   ds.Misc.PlayerCount,
		DaysPlayed:    int64(math.Floor(ds.Misc.DaysPlayed)),
		// One block is one metre.
		DistanceBlocks: int64(math.Floor(ds.Misc.TotalDistanceCM / 100)),
		LootrOpened:    ds.Lootr.LootrTotal,
	}
	for _, p := range dir.Players() {
		g.Deaths += ds.Deaths[p.Username]
	}
	return g
}

// PlayerStats are the numbers of a player view.
type PlayerStats struct {
	Player      Player
	Deaths      int64
	LootrOpened int64
	Tables      []LootTableCount
}

// ComputePlayer extracts a player's numbers. A nil dataset yields zeros.
func ComputePlayer(ds *Dataset, p Player) PlayerStats {
	ps := PlayerStats{Player: p}
	if ds == nil {
		return ps
	}
	ps.Deaths = ds.Deaths[p.Username]
	ps.LootrOpened = ds.Lootr.Total[p.Username]
	ps.Tables = ds.Lootr.ByTable[p.Username]
	return ps
}
