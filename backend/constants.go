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

// Seasons
const (
	SeasonOne = "season1"
	SeasonTwo = "season2"
)

// StatGlobal is the stat selection for server-wide statistics.
const StatGlobal = "global"

// Form field names of the two radio groups.
const (
	FieldSeason = "seasonSelect"
	FieldStat   = "statSelect"
)

// Season 1 dataset resources, relative to the dataset source.
const (
	ResourceDeaths = "Sorted/Season1/deathsCount.json"
	ResourceLootr  = "Sorted/Season1/lootrCount.json"
	ResourceMisc   = "Sorted/Season1/misc.json"
)

// Season 2 placeholder
const (
	SeasonTwoStart   = "2025-12-20T15:18:30Z"
	SeasonTwoPackURL = "https://www.curseforge.com/minecraft/modpacks/craftoria"
	SeasonTwoPack    = "Craftoria!"
)

// Avatar image host
const (
	avatarHeadURL = "https://crafthead.net/avatar/"
	avatarBodyURL = "https://crafthead.net/armor/body/"
)

// LootTableRows is the number of loot table rows on a player view.
const LootTableRows = 5

// Loot table row labels
const (
	LabelNoLootr      = "No Lootr chests looted"
	LabelNoMoreTables = "No more loot tables opened"
)

// Websocket message types
const (
	MsgTypeDataUpdate = "DATA_UPDATE"
	MsgTypePing       = "PING"
	MsgTypePong       = "PONG"
	MsgTypeError      = "ERROR"
)
