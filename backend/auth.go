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
	"log"
	"net/http"
	"strings"
)

type contextKey struct{}

// userIDKey is the context key for the authenticated user's ID (email).
// The associated value is always a string.
var userIDKey contextKey

// getUserID returns the UserID from the request context, if present.
func getUserID(r *http.Request) string {
	if val := r.Context().Value(userIDKey); val != nil {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return ""
}

// withUserID returns a copy of ctx carrying userId.
func withUserID(ctx context.Context, userId string) context.Context {
	return context.WithValue(ctx, userIDKey, normalizeEmail(userId))
}

// normalizeEmail ensures consistent casing and whitespace for User IDs.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// maskEmail obscures an email address for safe logging.
// e.g. "user@example.com" -> "u***@example.com"
func maskEmail(email string) string {
	if email == "" {
		return "<empty>"
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 || len(parts[0]) < 1 {
		return "****"
	}
	return string(parts[0][0]) + "***@" + parts[1]
}

// AdminList is the set of users allowed to reload the dataset.
type AdminList struct {
	admins map[string]bool
}

// NewAdminList parses a comma-separated list of emails.
func NewAdminList(list string) *AdminList {
	a := &AdminList{admins: make(map[string]bool)}
	for _, e := range strings.Split(list, ",") {
		if e = normalizeEmail(e); e != "" {
			a.admins[e] = true
		}
	}
	return a
}

// IsAdmin reports whether userId is an admin.
func (a *AdminList) IsAdmin(userId string) bool {
	userId = normalizeEmail(userId)
	if userId == "" {
		return false
	}
	ok := a.admins[userId]
	if !ok {
		log.Printf("[AUTH] Denied admin access for user=%s", maskEmail(userId))
	}
	return ok
}
