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
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/sync/errgroup"
)

// ErrNotLoaded is returned when no dataset has been loaded yet.
var ErrNotLoaded = errors.New("dataset not loaded")

// maxResourceSize bounds a single fetched document.
const maxResourceSize = 32 << 20

// Source fetches dataset resources by relative name.
type Source interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// FSSource reads resources from a file system.
type FSSource struct {
	FS fs.FS
}

// NewDirSource returns a source reading from dir.
func NewDirSource(dir string) *FSSource {
	return &FSSource{FS: os.DirFS(dir)}
}

// Fetch implements Source.
func (s *FSSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fs.ReadFile(s.FS, name)
}

// HTTPSource fetches resources relative to a base URL.
type HTTPSource struct {
	Base   *url.URL
	Client *http.Client
}

// NewHTTPSource returns a source fetching relative to baseURL.
func NewHTTPSource(baseURL string) (*HTTPSource, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("url.Parse: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported dataset url scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path[len(u.Path)-1] != '/' {
		u.Path += "/"
	}
	return &HTTPSource{Base: u, Client: cleanhttp.DefaultPooledClient()}, nil
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	ref, err := url.Parse(name)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Base.ResolveReference(ref).String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", name, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxResourceSize))
}

// Loader loads the Season 1 dataset and holds the current version.
type Loader struct {
	src     Source
	archive *Archive
	now     func() time.Time

	started atomic.Bool
	version atomic.Uint64

	mu       sync.RWMutex
	current  *Dataset
	lastErr  error
	onLoadFn []func(*Dataset)
}

// NewLoader returns a loader reading from src. archive may be nil.
func NewLoader(src Source, archive *Archive) *Loader {
	return &Loader{
		src:     src,
		archive: archive,
		now:     time.Now,
	}
}

// OnLoad registers fn to be called after every successful load.
func (l *Loader) OnLoad(fn func(*Dataset)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onLoadFn = append(l.onLoadFn, fn)
}

// Load fetches the dataset once. Calls after the first are no-ops,
// whether or not the first succeeded.
func (l *Loader) Load(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return nil
	}
	return l.Reload(ctx)
}

// Reload fetches the dataset again and replaces the current one on success.
// On failure the current dataset is kept.
func (l *Loader) Reload(ctx context.Context) error {
	l.started.Store(true)
	ds, err := l.fetch(ctx)
	if err != nil {
		log.Printf("[LOADER] Failed to load Season 1 data: %v", err)
		l.mu.Lock()
		l.lastErr = err
		l.mu.Unlock()
		return err
	}

	// Versions are assigned under mu so concurrent reloads store them in order.
	l.mu.Lock()
	ds.Version = l.version.Add(1)
	ds.LoadedAt = l.now()
	l.current = ds
	l.lastErr = nil
	callbacks := make([]func(*Dataset), len(l.onLoadFn))
	copy(callbacks, l.onLoadFn)
	l.mu.Unlock()

	log.Printf("[LOADER] Loaded Season 1 data version %d (%d players with deaths, %d lootr opens)", ds.Version, len(ds.Deaths), ds.Lootr.LootrTotal)

	if l.archive != nil {
		if err := l.archive.Save(ds); err != nil {
			log.Printf("[LOADER] Failed to archive version %d: %v", ds.Version, err)
		}
	}
	for _, fn := range callbacks {
		fn(ds)
	}
	return nil
}

// fetch gets the three documents concurrently. The first failure cancels
// the remaining fetches.
func (l *Loader) fetch(ctx context.Context) (*Dataset, error) {
	ds := &Dataset{}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := l.src.Fetch(ctx, ResourceDeaths)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", ResourceDeaths, err)
		}
		if ds.Deaths, err = DecodeDeaths(data); err != nil {
			return fmt.Errorf("decode %s: %w", ResourceDeaths, err)
		}
		return nil
	})
	g.Go(func() error {
		data, err := l.src.Fetch(ctx, ResourceLootr)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", ResourceLootr, err)
		}
		if ds.Lootr, err = DecodeLootr(data); err != nil {
			return fmt.Errorf("decode %s: %w", ResourceLootr, err)
		}
		return nil
	})
	g.Go(func() error {
		data, err := l.src.Fetch(ctx, ResourceMisc)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", ResourceMisc, err)
		}
		if ds.Misc, err = DecodeMisc(data); err != nil {
			return fmt.Errorf("decode %s: %w", ResourceMisc, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ds, nil
}

// Dataset returns the current dataset, or nil when none was loaded.
func (l *Loader) Dataset() *Dataset {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Version returns the current data version, 0 before the first load.
func (l *Loader) Version() uint64 {
	return l.version.Load()
}

// LoaderStatus is served by /api/status.
type LoaderStatus struct {
	Loaded    bool       `json:"loaded"`
	Version   uint64     `json:"version"`
	LoadedAt  *time.Time `json:"loadedAt,omitempty"`
	LastError string     `json:"lastError,omitempty"`
}

// Status reports the loader state.
func (l *Loader) Status() LoaderStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()
	st := LoaderStatus{Version: l.version.Load()}
	if l.current != nil {
		st.Loaded = true
		t := l.current.LoadedAt
		st.LoadedAt = &t
	}
	if l.lastErr != nil {
		st.LastError = l.lastErr.Error()
	}
	return st
}
