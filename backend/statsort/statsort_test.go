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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/ttbt-io/pufferstats/backend"
)

var unknownID = uuid.MustParse("33333333-3333-4333-8333-333333333333")

func intArrayJSON(id uuid.UUID) string {
	a := backend.IntArrayFromUUID(id)
	return fmt.Sprintf("[%d,%d,%d,%d]", a[0], a[1], a[2], a[3])
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
}

func keys(r gjson.Result) []string {
	var out []string
	r.ForEach(func(k, _ gjson.Result) bool {
		out = append(out, k.String())
		return true
	})
	return out
}

func TestIntArrays(t *testing.T) {
	v := gjson.Parse(`[[1,2,3,4],[1,2,3],[[5,6,7,8]],{"x":[9,10,11,-12]},[1.5,2,3,4],["a",1,2,3],[1,2,3,4,5],[4294967295,0,0,0]]`)
	var got [][4]int32
	for a := range IntArrays(v) {
		got = append(got, a)
	}
	want := [][4]int32{{1, 2, 3, 4}, {5, 6, 7, 8}, {9, 10, 11, -12}, {-1, 0, 0, 0}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("IntArrays = %v, want %v", got, want)
	}

	n := 0
	for range IntArrays(v) {
		n++
		break
	}
	if n != 1 {
		t.Errorf("early stop yielded %d", n)
	}
}

func TestExtractValues(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "statsort_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	writeFiles(t, tempDir, map[string]string{
		"a.json":       `{"data": {"count": 1}}`,
		"sub/b.json":   `{"data": {"count": 2}}`,
		"c.json":       `{"other": 3}`,
		"bad.json":     `{"data": `,
		"notes.txt":    `{"data": {"count": 4}}`,
		"d.json":       `{"data": {"count.x": 5}}`,
		"deep/e.json":  `{"data": {"count": {"n": 6}}}`,
		"list/f.json":  `[{"data": 7}]`,
		"empty/g.json": ``,
	})

	values, err := ExtractValues(tempDir, "data", "count")
	if err != nil {
		t.Fatalf("ExtractValues: %v", err)
	}
	got := map[string]string{}
	for _, v := range values {
		rel, _ := filepath.Rel(tempDir, v.Path)
		got[filepath.ToSlash(rel)] = v.Result.Raw
	}
	want := map[string]string{
		"a.json":      "1",
		"sub/b.json":  "2",
		"deep/e.json": `{"n": 6}`,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractValues = %v, want %v", got, want)
	}

	dotted, err := ExtractValues(tempDir, "data", "count.x")
	if err != nil {
		t.Fatalf("ExtractValues: %v", err)
	}
	if len(dotted) != 1 || dotted[0].Result.Int() != 5 {
		t.Errorf("escaped key = %v", dotted)
	}

	if _, err := ExtractValues(filepath.Join(tempDir, "missing"), "data"); err == nil {
		t.Error("missing directory accepted")
	}
}

func TestCountLootrOpeners(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "statsort_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	players := backend.DefaultDirectory()
	atlas, _ := players.Lookup("AtlasV1224")
	pink, _ := players.Lookup("Pinkmoney")

	writeFiles(t, tempDir, map[string]string{
		"a.json":     fmt.Sprintf(`{"data":{"LootTable":"minecraft:chests/village","actualOpeners":[%s,%s]}}`, intArrayJSON(atlas.ID), intArrayJSON(pink.ID)),
		"b.json":     fmt.Sprintf(`{"data":{"LootTable":"minecraft:chests/desert","actualOpeners":[%s]}}`, intArrayJSON(atlas.ID)),
		"c.json":     fmt.Sprintf(`{"data":{"actualOpeners":{"nested":[%s]}}}`, intArrayJSON(unknownID)),
		"sub/d.json": fmt.Sprintf(`{"data":{"LootTable":"minecraft:chests/village","actualOpeners":[%s]}}`, intArrayJSON(atlas.ID)),
		"e.json":     `{"data":{"LootTable":"minecraft:chests/empty","actualOpeners":[]}}`,
		"bad.json":   `{"data":`,
	})

	tally, err := CountLootrOpeners(tempDir, players)
	if err != nil {
		t.Fatalf("CountLootrOpeners: %v", err)
	}
	if tally.LootrTotal != 5 {
		t.Errorf("LootrTotal = %d, want 5", tally.LootrTotal)
	}
	want := []UserLootr{
		{User: "AtlasV1224", Opened: 3, Tables: []backend.LootTableCount{{Table: "minecraft:chests/village", Count: 2}, {Table: "minecraft:chests/desert", Count: 1}}},
		{User: unknownID.String(), Opened: 1, Tables: []backend.LootTableCount{{Table: UnknownLootTable, Count: 1}}},
		{User: "Pinkmoney", Opened: 1, Tables: []backend.LootTableCount{{Table: "minecraft:chests/village", Count: 1}}},
	}
	if !reflect.DeepEqual(tally.Users, want) {
		t.Errorf("Users = %+v, want %+v", tally.Users, want)
	}

	doc, err := tally.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	parsed := gjson.ParseBytes(doc)
	if got := keys(parsed); !reflect.DeepEqual(got, []string{"lootrTotal", "Total", "ByTable"}) {
		t.Errorf("top level keys = %v", got)
	}
	if got := keys(parsed.Get("Total")); !reflect.DeepEqual(got, []string{"AtlasV1224", unknownID.String(), "Pinkmoney"}) {
		t.Errorf("Total keys = %v", got)
	}

	// The page reads the document back in the same order.
	lc, err := backend.DecodeLootr(doc)
	if err != nil {
		t.Fatalf("DecodeLootr: %v", err)
	}
	if lc.LootrTotal != 5 || lc.Total["AtlasV1224"] != 3 {
		t.Errorf("decoded = %+v", lc)
	}
	if !reflect.DeepEqual(lc.ByTable["AtlasV1224"], want[0].Tables) {
		t.Errorf("decoded tables = %+v", lc.ByTable["AtlasV1224"])
	}
}

func TestPlayerStats(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "statsort_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	players := backend.DefaultDirectory()
	atlas, _ := players.Lookup("AtlasV1224")
	writeFiles(t, tempDir, map[string]string{
		atlas.ID.String() + ".json": `{"stats":{"minecraft:custom":{"minecraft:deaths":4,"minecraft:walk_one_cm":1000,"minecraft:sprint_one_cm":500,"minecraft:play_time":48000,"minecraft:jump":7}},"DataVersion":3465}`,
		unknownID.String() + ".json": `{"stats":{"minecraft:custom":{"minecraft:play_time":24000,"minecraft:fly_one_cm":250}}}`,
		"notauuid.json":              `{"stats":{}}`,
	})

	records, err := ReadPlayerStats(tempDir, players)
	if err != nil {
		t.Fatalf("ReadPlayerStats: %v", err)
	}
	byUser := map[string]PlayerRecord{}
	for _, r := range records {
		byUser[r.User] = r
	}
	if len(records) != 2 {
		t.Fatalf("records = %+v", records)
	}
	if got := byUser["AtlasV1224"]; got.Deaths != 4 || got.DistanceCM != 1500 || got.PlayTicks != 48000 {
		t.Errorf("AtlasV1224 = %+v", got)
	}
	if got := byUser[unknownID.String()]; got.ID != unknownID || got.Deaths != 0 || got.DistanceCM != 250 {
		t.Errorf("unknown = %+v", got)
	}

	t.Run("Deaths", func(t *testing.T) {
		doc, err := DeathsJSON(records)
		if err != nil {
			t.Fatalf("DeathsJSON: %v", err)
		}
		parsed := gjson.ParseBytes(doc)
		if got := keys(parsed); !reflect.DeepEqual(got, []string{"AtlasV1224", unknownID.String()}) {
			t.Errorf("keys = %v", got)
		}
		deaths, err := backend.DecodeDeaths(doc)
		if err != nil {
			t.Fatalf("DecodeDeaths: %v", err)
		}
		if deaths["AtlasV1224"] != 4 {
			t.Errorf("deaths = %v", deaths)
		}
	})

	t.Run("Misc", func(t *testing.T) {
		season := Season{
			Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		}
		m := ComputeMisc(records, season)
		want := backend.MiscStats{DaysPlayedIRL: 90, PlayerCount: 2, DaysPlayed: 2, TotalDistanceCM: 1750}
		if m != want {
			t.Errorf("ComputeMisc = %+v, want %+v", m, want)
		}

		season.WorldTicks = 240000
		if m := ComputeMisc(records, season); m.DaysPlayed != 10 {
			t.Errorf("DaysPlayed with world ticks = %v", m.DaysPlayed)
		}
		if m := ComputeMisc(nil, Season{}); m != (backend.MiscStats{}) {
			t.Errorf("ComputeMisc(nil) = %+v", m)
		}

		doc, err := MiscJSON(want)
		if err != nil {
			t.Fatalf("MiscJSON: %v", err)
		}
		if got := keys(gjson.ParseBytes(doc)); !reflect.DeepEqual(got, []string{"daysPlayedIRL", "playerCount", "daysPlayed", "totalDistanceCM"}) {
			t.Errorf("keys = %v", got)
		}
		back, err := backend.DecodeMisc(doc)
		if err != nil {
			t.Fatalf("DecodeMisc: %v", err)
		}
		if back != want {
			t.Errorf("DecodeMisc = %+v, want %+v", back, want)
		}
	})
}

func TestWriteJSON(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "statsort_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	t.Run("Overwrite", func(t *testing.T) {
		path := filepath.Join(tempDir, "Sorted", "Season1", "misc.json")
		for _, doc := range []string{`{"a":1}`, `{"b":2}`} {
			if err := WriteJSON([]byte(doc), path, Overwrite); err != nil {
				t.Fatalf("WriteJSON: %v", err)
			}
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		parsed := gjson.ParseBytes(data)
		if parsed.Get("a").Exists() || parsed.Get("b").Int() != 2 {
			t.Errorf("file = %s", data)
		}
		entries, _ := os.ReadDir(filepath.Dir(path))
		if len(entries) != 1 {
			t.Errorf("directory has %d entries, want 1", len(entries))
		}
	})

	t.Run("Append", func(t *testing.T) {
		path := filepath.Join(tempDir, "history.json")
		for i := 1; i <= 3; i++ {
			if err := WriteJSON([]byte(fmt.Sprintf(`{"run":%d}`, i)), path, Append); err != nil {
				t.Fatalf("WriteJSON %d: %v", i, err)
			}
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		runs := gjson.GetBytes(data, "#.run")
		if got := runs.String(); got != "[1,2,3]" {
			t.Errorf("runs = %s (file %s)", got, data)
		}
	})

	t.Run("Errors", func(t *testing.T) {
		obj := filepath.Join(tempDir, "object.json")
		writeFiles(t, tempDir, map[string]string{"object.json": `{"a":1}`, "broken.json": `[1,`})
		if err := WriteJSON([]byte(`{}`), obj, Append); !errors.Is(err, ErrNotArray) {
			t.Errorf("append to object = %v", err)
		}
		if err := WriteJSON([]byte(`{}`), filepath.Join(tempDir, "broken.json"), Append); !errors.Is(err, ErrInvalidAppend) {
			t.Errorf("append to broken = %v", err)
		}
		if err := WriteJSON([]byte(`{}`), obj, Mode("replace")); !errors.Is(err, ErrInvalidMode) {
			t.Errorf("bad mode = %v", err)
		}
		if err := WriteJSON([]byte(`{"a":`), obj, Overwrite); err == nil {
			t.Error("invalid document written")
		}
		if _, err := ParseMode("sideways"); !errors.Is(err, ErrInvalidMode) {
			t.Errorf("ParseMode = %v", err)
		}
	})
}
