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
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Theme is the color scheme preference of a visitor.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ThemeStorageKey is the cookie holding the persisted preference.
const ThemeStorageKey = "theme-preference"

// colorSchemeHint is the client hint carrying the OS color scheme.
const colorSchemeHint = "Sec-CH-Prefers-Color-Scheme"

// ParseTheme returns the theme named by s.
func ParseTheme(s string) (Theme, bool) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case ThemeLight:
		return ThemeLight, true
	case ThemeDark:
		return ThemeDark, true
	}
	return "", false
}

// Flip returns the opposite theme.
func (t Theme) Flip() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// ResolveTheme returns the preference for the request: the persisted cookie
// first, then the OS color scheme reported by the browser, then light.
func ResolveTheme(r *http.Request) Theme {
	if cookie, err := r.Cookie(ThemeStorageKey); err == nil {
		if t, ok := ParseTheme(cookie.Value); ok {
			return t
		}
	}
	if t, ok := ParseTheme(r.Header.Get(colorSchemeHint)); ok {
		return t
	}
	return ThemeLight
}

// SetThemeCookie persists the preference on the response.
func SetThemeCookie(w http.ResponseWriter, t Theme) {
	http.SetCookie(w, &http.Cookie{
		Name:     ThemeStorageKey,
		Value:    string(t),
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
}

// requestColorScheme asks the browser to send the OS color scheme hint.
// Critical-CH makes a supporting browser retry the first request with the
// hint. Others get the OS scheme from static/theme.js.
func requestColorScheme(w http.ResponseWriter) {
	w.Header().Set("Accept-CH", colorSchemeHint)
	w.Header().Set("Critical-CH", colorSchemeHint)
	w.Header().Add("Vary", colorSchemeHint)
	w.Header().Add("Vary", "Cookie")
}

// handleTheme serves POST /api/theme.
//
// action=toggle flips the current preference. system=dark|light records an
// OS-level change and overwrites the stored preference to match.
func handleTheme(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 4096)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	current := ResolveTheme(r)
	var next Theme
	switch {
	case r.PostForm.Get("system") != "":
		t, ok := ParseTheme(r.PostForm.Get("system"))
		if !ok {
			http.Error(w, "Bad Request: invalid theme", http.StatusBadRequest)
			return
		}
		next = t
	case r.PostForm.Get("action") == "toggle" || r.PostForm.Get("action") == "":
		next = current.Flip()
	default:
		http.Error(w, "Bad Request: invalid action", http.StatusBadRequest)
		return
	}

	SetThemeCookie(w, next)

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"theme": string(next)})
		return
	}
	// Plain form post: go back to the page that sent it.
	http.Redirect(w, r, localPath(r.PostForm.Get("return")), http.StatusSeeOther)
}

// localPath returns ret when it is a path on this site, "/" otherwise.
// Browsers read a backslash as a slash and drop tabs and newlines, so any of
// those could turn ret into a scheme-relative URL.
func localPath(ret string) string {
	if !strings.HasPrefix(ret, "/") || strings.HasPrefix(ret, "//") || strings.ContainsAny(ret, "\\\t\r\n") {
		return "/"
	}
	u, err := url.Parse(ret)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return ret
}
