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
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

// jwksRefreshInterval is the minimum time between two JWKS fetches
// triggered by unknown key IDs.
const jwksRefreshInterval = time.Minute

// jwksVerifier resolves JWT signing keys from a JWKS endpoint.
type jwksVerifier struct {
	url string

	mu          sync.RWMutex
	keys        jwk.Set
	lastRefresh time.Time
}

func newJWKSVerifier(url string) *jwksVerifier {
	v := &jwksVerifier{url: url}
	if url == "" {
		log.Println("[AUTH] No AuthJWKSURL provided. Admin endpoints are unreachable unless MockAuth is used.")
		return v
	}
	if err := v.refresh(); err != nil {
		log.Printf("[AUTH] Warning: Failed to fetch JWKS on startup: %v", err)
	}
	return v
}

func (v *jwksVerifier) refresh() error {
	if v.url == "" {
		return fmt.Errorf("no JWKS URL provided")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	set, err := jwk.Fetch(ctx, v.url)
	if err != nil {
		return fmt.Errorf("failed to fetch JWKS: %w", err)
	}

	v.mu.Lock()
	v.keys = set
	v.lastRefresh = time.Now()
	v.mu.Unlock()
	return nil
}

func (v *jwksVerifier) lookup(kid string) (any, error) {
	v.mu.RLock()
	set := v.keys
	v.mu.RUnlock()
	if set == nil {
		return nil, fmt.Errorf("JWKS not initialized")
	}
	key, ok := set.LookupKeyID(kid)
	if !ok {
		return nil, fmt.Errorf("key %s not found in JWKS", kid)
	}
	var raw any
	if err := jwk.Export(key, &raw); err != nil {
		return nil, fmt.Errorf("failed to materialize key: %w", err)
	}
	return raw, nil
}

// keyFunc is the jwt.Keyfunc. Unknown key IDs trigger at most one JWKS
// refresh per jwksRefreshInterval.
func (v *jwksVerifier) keyFunc(token *jwt.Token) (any, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA, *jwt.SigningMethodEd25519:
	default:
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	kid, ok := token.Header["kid"].(string)
	if !ok {
		return nil, fmt.Errorf("token missing 'kid' header")
	}

	key, err := v.lookup(kid)
	if err == nil {
		return key, nil
	}
	v.mu.RLock()
	stale := time.Since(v.lastRefresh) > jwksRefreshInterval
	v.mu.RUnlock()
	if !stale {
		return nil, err
	}
	if err := v.refresh(); err != nil {
		log.Printf("[AUTH] Error refreshing JWKS: %v", err)
		return nil, err
	}
	return v.lookup(kid)
}

// emailFromToken returns the email claim of a valid token.
func (v *jwksVerifier) emailFromToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, v.keyFunc)
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims type")
	}
	email, _ := claims["email"].(string)
	if email == "" {
		return "", fmt.Errorf("token has no email claim")
	}
	return email, nil
}

// jwtAuthMiddleware identifies the user from a JWT cookie verified against
// the JWKS endpoint. Requests without a valid token stay anonymous.
func jwtAuthMiddleware(opts Options, next http.Handler) http.Handler {
	verifier := newJWKSVerifier(opts.AuthJWKSURL)
	cookieName := opts.AuthCookieName
	if cookieName == "" {
		cookieName = "pufferstats_auth"
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(cookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		email, err := verifier.emailFromToken(cookie.Value)
		if err != nil {
			if opts.Debug {
				log.Printf("[AUTH] JWT validation failed: %v", err)
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), email)))
	})
}
