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
	"slices"

	"github.com/tidwall/sjson"
	"github.com/ttbt-io/pufferstats/backend"
)

// UnknownLootTable is the table name of containers without one.
const UnknownLootTable = "unknown"

// UserLootr is one player's share of the opened Lootr containers.
type UserLootr struct {
	User   string
	Opened int64
	// Most opened first.
	Tables []backend.LootTableCount
}

// LootrTally is the content of lootrCount.json.
type LootrTally struct {
	LootrTotal int64
	// Most opened first.
	Users []UserLootr
}

// CountLootrOpeners counts the openers of every Lootr container file under
// dir. Openers are stored as IntArrays under data.actualOpeners; they are
// named through players, or by UUID when unknown.
func CountLootrOpeners(dir string, players *backend.Directory) (*LootrTally, error) {
	values, err := ExtractValues(dir, "data")
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", dir, err)
	}

	type counts struct {
		total  int64
		tables map[string]int64
	}
	byUser := make(map[string]*counts)
	tally := &LootrTally{}

	for _, v := range values {
		table := v.Result.Get("LootTable").String()
		if table == "" {
			table = UnknownLootTable
		}
		for a := range IntArrays(v.Result.Get("actualOpeners")) {
			user := players.Username(backend.UUIDFromIntArray(a))
			c, ok := byUser[user]
			if !ok {
				c = &counts{tables: make(map[string]int64)}
				byUser[user] = c
			}
			c.total++
			c.tables[table]++
			tally.LootrTotal++
		}
	}

	for user, c := range byUser {
		u := UserLootr{User: user, Opened: c.total}
		for table, n := range c.tables {
			u.Tables = append(u.Tables, backend.LootTableCount{Table: table, Count: n})
		}
		slices.SortFunc(u.Tables, func(a, b backend.LootTableCount) int {
			if c := cmp.Compare(b.Count, a.Count); c != 0 {
				return c
			}
			return cmp.Compare(a.Table, b.Table)
		})
		tally.Users = append(tally.Users, u)
	}
	slices.SortFunc(tally.Users, func(a, b UserLootr) int {
		if c := cmp.Compare(b.Opened, a.Opened); c != 0 {
			return c
		}
		return cmp.Compare(a.User, b.User)
	})
	return tally, nil
}

// JSON encodes the tally with keys in tally order.
func (t *LootrTally) JSON() ([]byte, error) {
	doc := []byte(`{"lootrTotal":0,"Total":{},"ByTable":{}}`)
	doc, err := sjson.SetBytes(doc, "lootrTotal", t.LootrTotal)
	if err != nil {
		return nil, err
	}
	for _, u := range t.Users {
		user := escapeKey(u.User)
		if doc, err = sjson.SetBytes(doc, "Total."+user, u.Opened); err != nil {
			return nil, fmt.Errorf("total %s: %w", u.User, err)
		}
		if doc, err = sjson.SetRawBytes(doc, "ByTable."+user, []byte("{}")); err != nil {
			return nil, fmt.Errorf("tables %s: %w", u.User, err)
		}
		for _, tc := range u.Tables {
			if doc, err = sjson.SetBytes(doc, "ByTable."+user+"."+escapeKey(tc.Table), tc.Count); err != nil {
				return nil, fmt.Errorf("table %s of %s: %w", tc.Table, u.User, err)
			}
		}
	}
	return doc, nil
}
