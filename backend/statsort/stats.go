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

package statsort

import (
	"cmp"
	"fmt"
	"log"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/ttbt-io/pufferstats/backend"
)

// TicksPerDay is the length of a Minecraft day.
const TicksPerDay = 24000

// PlayerRecord holds the counters of one player stats file.
type PlayerRecord struct {
	ID         uuid.UUID
	User       string
	Deaths     int64
	DistanceCM int64
	PlayTicks  int64
}

// ReadPlayerStats reads the vanilla stats/<uuid>.json files under dir.
// Files not named after a UUID are skipped.
func ReadPlayerStats(dir string, players *backend.Directory) ([]PlayerRecord, error) {
	values, err := ExtractValues(dir, "stats")
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", dir, err)
	}
	var out []PlayerRecord
	for _, v := range values {
		id, err := uuid.Parse(strings.TrimSuffix(filepath.Base(v.Path), ".json"))
		if err != nil {
			log.Printf("[STATSORT] skipping %s: not a player stats file", v.Path)
			continue
		}
		custom := v.Result.Get(joinPath("minecraft:custom"))
		rec := PlayerRecord{
			ID:        id,
			User:      players.Username(id),
			Deaths:    custom.Get(joinPath("minecraft:deaths")).Int(),
			PlayTicks: custom.Get(joinPath("minecraft:play_time")).Int(),
		}
		custom.ForEach(func(key, value gjson.Result) bool {
			if strings.HasSuffix(key.String(), "_one_cm") {
				rec.DistanceCM += value.Int()
			}
			return true
		})
		out = append(out, rec)
	}
	return out, nil
}

// DeathsJSON encodes the username -> deaths map, most deaths first.
func DeathsJSON(records []PlayerRecord) ([]byte, error) {
	sorted := slices.Clone(records)
	slices.SortFunc(sorted, func(a, b PlayerRecord) int {
		if c := cmp.Compare(b.Deaths, a.Deaths); c != 0 {
			return c
		}
		return cmp.Compare(a.User, b.User)
	})
	doc := []byte("{}")
	var err error
	for _, r := range sorted {
		if doc, err = sjson.SetBytes(doc, escapeKey(r.User), r.Deaths); err != nil {
			return nil, fmt.Errorf("deaths %s: %w", r.User, err)
		}
	}
	return doc, nil
}

// Season describes the period the statistics cover.
type Season struct {
	Start time.Time
	End   time.Time
	// WorldTicks is the world age. When zero, the longest play time is used.
	WorldTicks int64
}

// ComputeMisc derives the aggregate numbers of misc.json.
func ComputeMisc(records []PlayerRecord, s Season) backend.MiscStats {
	m := backend.MiscStats{PlayerCount: int64(len(records))}
	if !s.Start.IsZero() && s.End.After(s.Start) {
		m.DaysPlayedIRL = s.End.Sub(s.Start).Hours() / 24
	}
	ticks := s.WorldTicks
	var distance int64
	for _, r := range records {
		distance += r.DistanceCM
		if s.WorldTicks == 0 {
			ticks = max(ticks, r.PlayTicks)
		}
	}
	m.DaysPlayed = float64(ticks) / TicksPerDay
	m.TotalDistanceCM = float64(distance)
	return m
}

// MiscJSON encodes m with the keys in document order.
func MiscJSON(m backend.MiscStats) ([]byte, error) {
	doc := []byte("{}")
	var err error
	for _, kv := range []struct {
		key   string
		value any
	}{
		{"daysPlayedIRL", m.DaysPlayedIRL},
		{"playerCount", m.PlayerCount},
		{"daysPlayed", m.DaysPlayed},
		{"totalDistanceCM", m.TotalDistanceCM},
	} {
		if doc, err = sjson.SetBytes(doc, kv.key, kv.value); err != nil {
			return nil, err
		}
	}
	return doc, nil
}
