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
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	ErrUnknownSeason = errors.New("unknown season")
	ErrUnknownPlayer = errors.New("unknown player")
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).ParseFS(templateFS, "templates/*.html"))

// Selection is the state of the two radio groups.
type Selection struct {
	Season string
	Stat   string
}

// ParseSelection reads a selection from query or form values. The radio
// group names take precedence over the short aliases.
func ParseSelection(v url.Values) Selection {
	pick := func(keys ...string) string {
		for _, k := range keys {
			if s := strings.TrimSpace(v.Get(k)); s != "" {
				return s
			}
		}
		return ""
	}
	return Selection{
		Season: pick(FieldSeason, "season"),
		Stat:   pick(FieldStat, "stat"),
	}
}

// Query returns the selection as query values.
func (s Selection) Query() url.Values {
	v := url.Values{}
	if s.Season != "" {
		v.Set(FieldSeason, s.Season)
	}
	if s.Stat != "" {
		v.Set(FieldStat, s.Stat)
	}
	return v
}

// ViewKind identifies what a rendered view shows.
type ViewKind int

const (
	ViewNone ViewKind = iota
	ViewGlobal
	ViewPlayer
	ViewComingSoon
)

func (k ViewKind) String() string {
	switch k {
	case ViewGlobal:
		return "global"
	case ViewPlayer:
		return "player"
	case ViewComingSoon:
		return "coming-soon"
	}
	return "none"
}

// View is the rendered content area.
type View struct {
	Kind ViewKind
	HTML template.HTML
}

// LootRow is one of the loot table rows of a player view.
type LootRow struct {
	Name      string
	Total     string
	ShowTotal bool
}

// BuildLootRows lays out a player's loot tables on the fixed rows. Tables
// are shown in the given order. With fewer than LootTableRows tables the row
// after the last one says there are no more; an empty list says nothing was
// looted.
func BuildLootRows(entries []LootTableCount, p *message.Printer) [LootTableRows]LootRow {
	var rows [LootTableRows]LootRow
	if len(entries) == 0 {
		rows[0].Name = LabelNoLootr
		return rows
	}
	i := 0
	for ; i < len(entries) && i < LootTableRows; i++ {
		rows[i] = LootRow{
			Name:      entries[i].Table + ":",
			Total:     p.Sprintf("Opened %d times", entries[i].Count),
			ShowTotal: true,
		}
	}
	if i < LootTableRows {
		rows[i].Name = LabelNoMoreTables
	}
	return rows
}

// Renderer builds the content area for a selection.
type Renderer struct {
	dir            *Directory
	data           func() *Dataset
	now            func() time.Time
	seasonTwoStart time.Time

	mu            sync.Mutex
	globalVersion uint64
	globalHTML    map[string]template.HTML
	globalBuilds  int
}

// NewRenderer returns a renderer for the players of dir. data returns the
// current dataset or nil.
func NewRenderer(dir *Directory, data func() *Dataset) *Renderer {
	start, err := time.Parse(time.RFC3339, SeasonTwoStart)
	if err != nil {
		panic(err)
	}
	return &Renderer{
		dir:            dir,
		data:           data,
		now:            time.Now,
		seasonTwoStart: start,
		globalHTML:     make(map[string]template.HTML),
	}
}

// Render builds the view for sel. An incomplete selection renders nothing.
func (r *Renderer) Render(sel Selection, tag language.Tag) (View, error) {
	if sel.Season == "" || sel.Stat == "" {
		return View{Kind: ViewNone}, nil
	}
	switch sel.Season {
	case SeasonOne:
		if sel.Stat == StatGlobal {
			return r.renderGlobal(tag)
		}
		return r.renderPlayer(sel.Stat, tag)
	case SeasonTwo:
		return r.renderComingSoon(tag)
	}
	return View{}, fmt.Errorf("%w: %q", ErrUnknownSeason, sel.Season)
}

type globalData struct {
	DaysPlayedIRL string
	PlayerCount   string
	DaysPlayed    string
	Deaths        string
	Distance      string
	LootrOpened   string
}

// renderGlobal returns the cached global summary, building it on first use
// for the current data version.
func (r *Renderer) renderGlobal(tag language.Tag) (View, error) {
	ds := r.data()
	var version uint64
	if ds != nil {
		version = ds.Version
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if version != r.globalVersion {
		r.globalVersion = version
		r.globalHTML = make(map[string]template.HTML)
	}
	if html, ok := r.globalHTML[tag.String()]; ok {
		return View{Kind: ViewGlobal, HTML: html}, nil
	}

	g := ComputeGlobal(ds, r.dir)
	p := message.NewPrinter(tag)
	html, err := execute("global.html", globalData{
		DaysPlayedIRL: p.Sprintf("%d", g.DaysPlayedIRL),
		PlayerCount:   p.Sprintf("%d", g.PlayerCount),
		DaysPlayed:    p.Sprintf("%d", g.DaysPlayed),
		Deaths:        p.Sprintf("%d", g.Deaths),
		Distance:      p.Sprintf("%d", g.DistanceBlocks),
		LootrOpened:   p.Sprintf("%d", g.LootrOpened),
	})
	if err != nil {
		return View{}, err
	}
	r.globalHTML[tag.String()] = html
	r.globalBuilds++
	return View{Kind: ViewGlobal, HTML: html}, nil
}

// GlobalBuilds returns how many times the global summary was built.
func (r *Renderer) GlobalBuilds() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.globalBuilds
}

type playerData struct {
	Username    string
	AvatarURL   string
	Deaths      string
	LootrOpened string
	Rows        [LootTableRows]LootRow
}

func (r *Renderer) renderPlayer(username string, tag language.Tag) (View, error) {
	player, ok := r.dir.Lookup(username)
	if !ok {
		return View{}, fmt.Errorf("%w: %q", ErrUnknownPlayer, username)
	}
	ps := ComputePlayer(r.data(), player)
	p := message.NewPrinter(tag)
	html, err := execute("player.html", playerData{
		Username:    player.Username,
		AvatarURL:   player.BodyURL(),
		Deaths:      p.Sprintf("Total deaths: %d", ps.Deaths),
		LootrOpened: p.Sprintf("Total lootr chests opened: %d", ps.LootrOpened),
		Rows:        BuildLootRows(ps.Tables, p),
	})
	if err != nil {
		return View{}, err
	}
	return View{Kind: ViewPlayer, HTML: html}, nil
}

type comingSoonData struct {
	Start     string
	StartISO  string
	Countdown string
	Started   bool
	PackURL   string
	PackName  string
}

func (r *Renderer) renderComingSoon(tag language.Tag) (View, error) {
	now := r.now()
	html, err := execute("season2.html", comingSoonData{
		Start:     FormatMediumShort(r.seasonTwoStart, tag),
		StartISO:  r.seasonTwoStart.Format(time.RFC3339),
		Countdown: humanize.RelTime(r.seasonTwoStart, now, "ago", "from now"),
		Started:   !now.Before(r.seasonTwoStart),
		PackURL:   SeasonTwoPackURL,
		PackName:  SeasonTwoPack,
	})
	if err != nil {
		return View{}, err
	}
	return View{Kind: ViewComingSoon, HTML: html}, nil
}

// FormatMediumShort formats t as a medium date with a short time, in UTC.
// American English puts the month first and uses a 12-hour clock.
func FormatMediumShort(t time.Time, tag language.Tag) string {
	t = t.UTC()
	base, _ := tag.Base()
	region, _ := tag.Region()
	if base.String() == "en" && region.String() == "US" {
		return t.Format("Jan 2, 2006, 3:04 PM") + " UTC"
	}
	return t.Format("2 Jan 2006, 15:04") + " UTC"
}

func execute(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("template %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}
