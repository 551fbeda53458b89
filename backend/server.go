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
	"crypto/sha256"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/dustin/go-humanize"
	"github.com/ttbt-io/pufferstats/frontend"
	"golang.org/x/text/language"
)

func generateETag(data []byte) string {
	return fmt.Sprintf("\"%x\"", sha256.Sum256(data))
}

// Options represent server options.
type Options struct {
	Addr     string
	Cert     *tls.Certificate
	Listener net.Listener
	Debug    bool

	// DataDir holds the snapshot archive.
	DataDir string
	Storage *storage.Storage

	// Dataset source. Source wins over DatasetURL, which wins over DatasetDir.
	Source     Source
	DatasetDir string
	DatasetURL string

	// ReloadInterval reloads the dataset periodically when positive.
	ReloadInterval time.Duration

	Directory *Directory

	// Auth Options
	UseMockAuth    bool
	AuthCookieName string
	AuthJWKSURL    string
	Admins         string
}

// App is the state shared by the handlers.
type App struct {
	Directory *Directory
	Loader    *Loader
	Renderer  *Renderer
	Hub       *Hub
	Archive   *Archive
	Admins    *AdminList
	Metrics   *Metrics

	storage *storage.Storage

	now func() time.Time
}

// Server represents the running server instance.
type Server struct {
	httpServer *http.Server
	app        *App
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// App returns the server state.
func (s *Server) App() *App {
	return s.app
}

// Shutdown stops background loading, disconnects viewers and gracefully
// shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	s.app.Hub.Stop()
	err := s.httpServer.Shutdown(ctx)
	s.wg.Wait()
	if err := s.app.saveMetrics(); err != nil {
		log.Printf("[METRICS] %v", err)
	}
	if err != nil {
		return fmt.Errorf("http: %w", err)
	}
	return nil
}

// StartServer starts the web server, then loads the dataset in the background.
func StartServer(opts Options) (*Server, error) {
	app, handler, err := NewServerHandler(opts)
	if err != nil {
		return nil, err
	}

	httpServer := &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if opts.Cert != nil {
		httpServer.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{*opts.Cert},
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{httpServer: httpServer, app: app, cancel: cancel}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		app.Loader.Load(ctx)
		if opts.ReloadInterval <= 0 {
			return
		}
		ticker := time.NewTicker(opts.ReloadInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				app.Loader.Reload(ctx)
			}
		}
	}()

	go func() {
		var err error
		switch {
		case opts.Listener != nil && httpServer.TLSConfig != nil:
			log.Printf("Starting HTTPS server on provided listener %s...", opts.Listener.Addr())
			err = httpServer.ServeTLS(opts.Listener, "", "")
		case opts.Listener != nil:
			log.Printf("Starting HTTP server on provided listener %s...", opts.Listener.Addr())
			err = httpServer.Serve(opts.Listener)
		case httpServer.TLSConfig != nil:
			log.Printf("Starting HTTPS server on %s...", opts.Addr)
			err = httpServer.ListenAndServeTLS("", "")
		default:
			log.Printf("Starting HTTP server on %s...", opts.Addr)
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, net.ErrClosed) && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	return s, nil
}

// NewServerHandler creates the shared state and the HTTP handler. The
// dataset is not loaded; call App.Loader.Load.
func NewServerHandler(opts Options) (*App, http.Handler, error) {
	if opts.DataDir == "" {
		opts.DataDir = "data"
	}
	if opts.Storage == nil {
		opts.Storage = storage.New(opts.DataDir, nil)
	}
	if opts.Directory == nil {
		opts.Directory = DefaultDirectory()
	}

	src := opts.Source
	if src == nil {
		if opts.DatasetURL != "" {
			hs, err := NewHTTPSource(opts.DatasetURL)
			if err != nil {
				return nil, nil, err
			}
			src = hs
		} else {
			if opts.DatasetDir == "" {
				opts.DatasetDir = "."
			}
			src = NewDirSource(opts.DatasetDir)
		}
	}

	app := &App{
		Directory: opts.Directory,
		Archive:   NewArchive(opts.DataDir, opts.Storage),
		Hub:       NewHub(),
		Admins:    NewAdminList(opts.Admins),
		storage:   opts.Storage,
		now:       time.Now,
	}
	metrics, err := LoadMetrics(opts.Storage)
	if err != nil {
		log.Printf("[METRICS] Starting with empty metrics: %v", err)
	}
	app.Metrics = metrics
	app.Loader = NewLoader(src, app.Archive)
	app.Renderer = NewRenderer(app.Directory, app.Loader.Dataset)
	app.Loader.OnLoad(func(ds *Dataset) {
		app.Metrics.ObserveLoad(app.now())
		app.Hub.Broadcast(Message{Type: MsgTypeDataUpdate, Version: ds.Version})
	})

	debugf := func(string, ...any) {}
	if opts.Debug {
		debugf = func(f string, a ...any) {
			log.Printf("[DEBUG BACKEND] "+f, a...)
		}
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", app.handlePage)
	mux.HandleFunc("GET /api/view", app.handleView)
	mux.HandleFunc("/api/theme", handleTheme)
	mux.HandleFunc("GET /api/status", app.handleStatus)
	mux.HandleFunc("/api/admin/reload", app.handleReload)
	mux.HandleFunc("GET /api/admin/metrics", app.handleMetrics)
	mux.HandleFunc("GET /api/ws", func(w http.ResponseWriter, r *http.Request) {
		ServeWS(app.Hub, app.Loader.Version, w, r, debugf)
	})

	// The raw dataset, at the paths the page used to fetch it from.
	if opts.Source == nil && opts.DatasetURL == "" {
		mux.Handle("GET /Sorted/", contentTypeMiddleware(http.FileServer(http.Dir(opts.DatasetDir))))
	}

	mux.Handle("GET /static/", contentTypeMiddleware(http.FileServerFS(frontend.FS)))

	handler := http.Handler(mux)
	if opts.UseMockAuth {
		handler = mockAuthMiddleware(handler)
	} else {
		handler = jwtAuthMiddleware(opts, handler)
	}
	handler = metricsMiddleware(handler, app.Metrics, app.now)
	handler = loggingMiddleware(handler, debugf)
	handler = securityMiddleware(handler)
	handler = cacheControlMiddleware(handler)

	return app, handler, nil
}

var supportedLanguages = []language.Tag{
	language.AmericanEnglish,
	language.BritishEnglish,
	language.German,
	language.French,
	language.Dutch,
	language.Spanish,
}

var languageMatcher = language.NewMatcher(supportedLanguages)

// resolveLanguage picks the formatting language from Accept-Language.
func resolveLanguage(r *http.Request) language.Tag {
	accept := strings.TrimSpace(r.Header.Get("Accept-Language"))
	if accept == "" {
		return supportedLanguages[0]
	}
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return supportedLanguages[0]
	}
	_, idx, _ := languageMatcher.Match(tags...)
	return supportedLanguages[idx]
}

// renderError maps a renderer error to an HTTP response.
func renderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnknownSeason):
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrUnknownPlayer):
		http.Error(w, "Not Found: "+err.Error(), http.StatusNotFound)
	default:
		log.Printf("Render error: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

type seasonOption struct {
	Value   string
	Label   string
	Checked bool
}

type playerOption struct {
	Username  string
	AvatarURL string
	Checked   bool
}

type pageData struct {
	Lang          string
	Theme         Theme
	Return        string
	Seasons       []seasonOption
	GlobalChecked bool
	Players       []playerOption
	Kind          string
	Version       uint64
	View          template.HTML
	UpdatedAgo    string
}

// handlePage serves the whole page. Without a selection it shows the Season 1
// global view.
func (app *App) handlePage(w http.ResponseWriter, r *http.Request) {
	sel := ParseSelection(r.URL.Query())
	if sel.Season == "" && sel.Stat == "" {
		sel = Selection{Season: SeasonOne, Stat: StatGlobal}
	}
	tag := resolveLanguage(r)

	view, err := app.Renderer.Render(sel, tag)
	if err != nil {
		renderError(w, err)
		return
	}
	if view.Kind != ViewNone {
		app.Metrics.ObserveView(app.now(), view.Kind)
	}

	data := pageData{
		Lang:          tag.String(),
		Theme:         ResolveTheme(r),
		Return:        r.URL.RequestURI(),
		GlobalChecked: sel.Stat == StatGlobal,
		Kind:          view.Kind.String(),
		View:          view.HTML,
		Seasons: []seasonOption{
			{Value: SeasonOne, Label: "Season 1", Checked: sel.Season == SeasonOne},
			{Value: SeasonTwo, Label: "Season 2", Checked: sel.Season == SeasonTwo},
		},
	}
	for _, p := range app.Directory.Players() {
		data.Players = append(data.Players, playerOption{
			Username:  p.Username,
			AvatarURL: p.AvatarURL(),
			Checked:   sel.Stat == p.Username,
		})
	}
	if ds := app.Loader.Dataset(); ds != nil {
		data.Version = ds.Version
		data.UpdatedAgo = humanize.RelTime(ds.LoadedAt, app.now(), "ago", "from now")
	}

	html, err := execute("page.html", data)
	if err != nil {
		renderError(w, err)
		return
	}
	requestColorScheme(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

// handleView serves the content area for a selection.
func (app *App) handleView(w http.ResponseWriter, r *http.Request) {
	sel := ParseSelection(r.URL.Query())
	view, err := app.Renderer.Render(sel, resolveLanguage(r))
	if err != nil {
		renderError(w, err)
		return
	}
	if view.Kind == ViewNone {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	app.Metrics.ObserveView(app.now(), view.Kind)

	body := []byte(view.HTML)
	etag := generateETag(body)
	w.Header().Set("ETag", etag)
	w.Header().Set("X-View", view.Kind.String())
	w.Header().Set("X-Data-Version", strconv.FormatUint(app.Loader.Version(), 10))
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(body)
}

type statusResponse struct {
	LoaderStatus
	Players int `json:"players"`
	Viewers int `json:"viewers"`
}

func (app *App) status() statusResponse {
	return statusResponse{
		LoaderStatus: app.Loader.Status(),
		Players:      app.Directory.Len(),
		Viewers:      app.Hub.Clients(),
	}
}

func (app *App) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(app.status())
}

// handleReload fetches the dataset again. Admins only.
func (app *App) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userId, ok := app.requireAdmin(w, r)
	if !ok {
		return
	}
	if err := app.Loader.Reload(r.Context()); err != nil {
		http.Error(w, "Bad Gateway: "+err.Error(), http.StatusBadGateway)
		return
	}
	log.Printf("[ADMIN] Dataset reloaded by %s", maskEmail(userId))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(app.status())
}

// requireAdmin returns the signed-in admin, or writes a 403.
func (app *App) requireAdmin(w http.ResponseWriter, r *http.Request) (string, bool) {
	userId := getUserID(r)
	if userId == "" {
		http.Error(w, "Unauthenticated", http.StatusForbidden)
		return "", false
	}
	if !app.Admins.IsAdmin(userId) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return "", false
	}
	return userId, true
}

// handleMetrics reports traffic at the resolution named by the res
// parameter, 1m by default. Admins only.
func (app *App) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if _, ok := app.requireAdmin(w, r); !ok {
		return
	}
	res := r.URL.Query().Get("res")
	if res == "" {
		res = DefaultResolutions[0].Name
	}
	report, err := app.Metrics.Report(res)
	if err != nil {
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

func (app *App) saveMetrics() error {
	if err := os.MkdirAll(app.Archive.DataDir, 0755); err != nil {
		return err
	}
	return app.Metrics.Save(app.storage)
}

// cacheControlMiddleware keeps pages and API responses fresh and lets
// static assets be cached briefly.
func cacheControlMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/static/") || strings.HasPrefix(r.URL.Path, "/Sorted/") {
			w.Header().Set("Cache-Control", "public, max-age=300, proxy-revalidate, no-transform")
		} else {
			w.Header().Set("Cache-Control", "private, no-cache, no-transform")
		}
		next.ServeHTTP(w, r)
	})
}

// securityMiddleware adds HTTP security headers to responses. Avatars come
// from the crafthead image host.
func securityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data: https://crafthead.net; connect-src 'self' ws: wss:")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// mockAuthMiddleware takes the user ID from a cookie. For tests only.
func mockAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("mock_auth_user")
		if err == nil && cookie.Value != "" {
			next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), cookie.Value)))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// contentTypeMiddleware ensures that files are served with the correct MIME type.
func contentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch filepath.Ext(r.URL.Path) {
		case ".js", ".mjs":
			w.Header().Set("Content-Type", "application/javascript")
		case ".css":
			w.Header().Set("Content-Type", "text/css; charset=utf-8")
		case ".json":
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
		}
		next.ServeHTTP(w, r)
	})
}

// metricsMiddleware times every request except websocket sessions.
func metricsMiddleware(next http.Handler, m *Metrics, now func() time.Time) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/ws" {
			next.ServeHTTP(w, r)
			return
		}
		start := now()
		next.ServeHTTP(w, r)
		m.ObserveRequest(start, now().Sub(start))
	})
}

// loggingMiddleware logs the method and URL path of every incoming HTTP
// request in debug mode.
func loggingMiddleware(next http.Handler, debugf func(string, ...any)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		debugf("Received request: %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
