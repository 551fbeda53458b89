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
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

const (
	testDeathsJSON = `{"AtlasV1224": 12, "Pinkmoney": 3, "NotAPlayer": 100}`
	testLootrJSON  = `{
  "lootrTotal": 42,
  "Total": {"AtlasV1224": 16, "Pinkmoney": 1},
  "ByTable": {
    "AtlasV1224": {
      "minecraft:chests/f": 9,
      "minecraft:chests/a": 3,
      "minecraft:chests/b": 2,
      "minecraft:chests/c": 1,
      "minecraft:chests/d": 1,
      "minecraft:chests/e": 0
    },
    "Pinkmoney": {"minecraft:chests/village/village_weaponsmith": 1},
    "kittycatcasey": {}
  }
}`
	testMiscJSON = `{"daysPlayedIRL": 90.7, "playerCount": 18, "daysPlayed": 512.3, "totalDistanceCM": 123456789}`
)

// writeDataset creates the Sorted/Season1 documents under dir.
func writeDataset(t *testing.T, dir, deaths, lootr, misc string) {
	t.Helper()
	for name, content := range map[string]string{
		ResourceDeaths: deaths,
		ResourceLootr:  lootr,
		ResourceMisc:   misc,
	} {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
}

// testDataset decodes the test documents.
func testDataset(t *testing.T, version uint64) *Dataset {
	t.Helper()
	ds := &Dataset{Version: version}
	var err error
	if ds.Deaths, err = DecodeDeaths([]byte(testDeathsJSON)); err != nil {
		t.Fatalf("DecodeDeaths: %v", err)
	}
	if ds.Lootr, err = DecodeLootr([]byte(testLootrJSON)); err != nil {
		t.Fatalf("DecodeLootr: %v", err)
	}
	if ds.Misc, err = DecodeMisc([]byte(testMiscJSON)); err != nil {
		t.Fatalf("DecodeMisc: %v", err)
	}
	return ds
}

func parseHTML(t *testing.T, html template.HTML) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(html)))
	if err != nil {
		t.Fatalf("goquery: %v", err)
	}
	return doc
}

func textOf(doc *goquery.Document, selector string) string {
	return strings.Join(strings.Fields(doc.Find(selector).Text()), " ")
}
