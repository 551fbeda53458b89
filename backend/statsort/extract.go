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

// Package statsort turns world data extracted to JSON into the Sorted
// documents served by the stats page.
package statsort

import (
	"io/fs"
	"iter"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/ttbt-io/pufferstats/backend"
)

// Value is a value found in one file.
type Value struct {
	Path   string
	Result gjson.Result
}

// ExtractValues reads every .json file under dir and returns the value at
// keyPath of each file that has one. Files that can't be read or parsed are
// skipped.
func ExtractValues(dir string, keyPath ...string) ([]Value, error) {
	path := joinPath(keyPath...)
	var out []Value
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			log.Printf("[STATSORT] skipping %s: %v", p, err)
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			log.Printf("[STATSORT] skipping %s: %v", p, err)
			return nil
		}
		if !gjson.ValidBytes(data) {
			log.Printf("[STATSORT] skipping %s: invalid JSON", p)
			return nil
		}
		res := gjson.ParseBytes(data)
		if path != "" {
			res = res.Get(path)
		}
		if res.Exists() {
			out = append(out, Value{Path: p, Result: res})
		}
		return nil
	})
	return out, err
}

// IntArrays yields every array of exactly four 32-bit integers found in v,
// at any depth. Such an array is not searched further.
func IntArrays(v gjson.Result) iter.Seq[[4]int32] {
	return func(yield func([4]int32) bool) {
		walkIntArrays(v, yield)
	}
}

func walkIntArrays(v gjson.Result, yield func([4]int32) bool) bool {
	switch {
	case v.IsArray():
		items := v.Array()
		if a, ok := asIntArray(items); ok {
			return yield(a)
		}
		for _, item := range items {
			if !walkIntArrays(item, yield) {
				return false
			}
		}
	case v.IsObject():
		cont := true
		v.ForEach(func(_, item gjson.Result) bool {
			cont = walkIntArrays(item, yield)
			return cont
		})
		return cont
	}
	return true
}

func asIntArray(items []gjson.Result) ([4]int32, bool) {
	if len(items) != 4 {
		return [4]int32{}, false
	}
	ints := make([]int64, 0, 4)
	for _, item := range items {
		if item.Type != gjson.Number || strings.ContainsAny(item.Raw, ".eE") {
			return [4]int32{}, false
		}
		ints = append(ints, item.Int())
	}
	a, err := backend.IntArrayFromInts(ints)
	return a, err == nil
}

// escapeKey escapes the characters with a meaning in gjson and sjson paths.
func escapeKey(k string) string {
	var b strings.Builder
	for _, c := range k {
		switch c {
		case '\\', '.', '*', '?', '|', '#', '@':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}

func joinPath(keys ...string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = escapeKey(k)
	}
	return strings.Join(parts, ".")
}
