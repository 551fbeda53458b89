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

// Command statsort builds the Sorted/Season1 documents from a world backup
// extracted to JSON.
package main

import (
	"flag"
	"log"
	"path/filepath"
	"time"

	"github.com/ttbt-io/pufferstats/backend"
	"github.com/ttbt-io/pufferstats/backend/statsort"
	"golang.org/x/sync/errgroup"
)

var (
	worldDir   = flag.String("world", "Output/Backups/Season1", "Extracted world backup (contains data/lootr and stats)")
	outDir     = flag.String("out", "Sorted/Season1", "Output directory")
	modeFlag   = flag.String("mode", "overwrite", "overwrite or append")
	startFlag  = flag.String("start", "", "Season start, RFC 3339")
	endFlag    = flag.String("end", "", "Season end, RFC 3339")
	worldTicks = flag.Int64("world-ticks", 0, "World age in ticks. Defaults to the longest play time")
)

func parseTime(name, s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		log.Fatalf("--%s: %v", name, err)
	}
	return t
}

func main() {
	flag.Parse()
	mode, err := statsort.ParseMode(*modeFlag)
	if err != nil {
		log.Fatalf("--mode: %v", err)
	}
	season := statsort.Season{
		Start:      parseTime("start", *startFlag),
		End:        parseTime("end", *endFlag),
		WorldTicks: *worldTicks,
	}
	players := backend.DefaultDirectory()

	var g errgroup.Group
	g.Go(func() error {
		tally, err := statsort.CountLootrOpeners(filepath.Join(*worldDir, "data", "lootr"), players)
		if err != nil {
			return err
		}
		doc, err := tally.JSON()
		if err != nil {
			return err
		}
		log.Printf("%d lootr containers opened by %d players", tally.LootrTotal, len(tally.Users))
		return statsort.WriteJSON(doc, filepath.Join(*outDir, "lootrCount.json"), mode)
	})
	g.Go(func() error {
		records, err := statsort.ReadPlayerStats(filepath.Join(*worldDir, "stats"), players)
		if err != nil {
			return err
		}
		deaths, err := statsort.DeathsJSON(records)
		if err != nil {
			return err
		}
		if err := statsort.WriteJSON(deaths, filepath.Join(*outDir, "deathsCount.json"), mode); err != nil {
			return err
		}
		misc, err := statsort.MiscJSON(statsort.ComputeMisc(records, season))
		if err != nil {
			return err
		}
		log.Printf("%d player stats files", len(records))
		return statsort.WriteJSON(misc, filepath.Join(*outDir, "misc.json"), mode)
	})
	if err := g.Wait(); err != nil {
		log.Fatalf("statsort: %v", err)
	}
}
