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

package statsort

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// Mode selects how WriteJSON treats an existing file.
type Mode string

const (
	Overwrite Mode = "overwrite"
	// Append adds the document to the JSON array held by the file.
	Append Mode = "append"
)

var (
	ErrInvalidMode   = errors.New("mode must be 'append' or 'overwrite'")
	ErrNotArray      = errors.New("append requires the JSON file to contain a list")
	ErrInvalidAppend = errors.New("invalid JSON file content to append")
)

// ParseMode returns the Mode named by s.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Overwrite, Append:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

var prettyOptions = &pretty.Options{Width: 80, Indent: "    "}

// WriteJSON writes the JSON document data to path, indented. The file is
// replaced atomically.
func WriteJSON(data []byte, path string, mode Mode) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("%s: document is not valid JSON", path)
	}
	var out []byte
	switch mode {
	case Overwrite:
		out = data
	case Append:
		existing, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			existing = []byte("[]")
		} else if err != nil {
			return err
		}
		if !gjson.ValidBytes(existing) {
			return fmt.Errorf("%s: %w", path, ErrInvalidAppend)
		}
		if !gjson.ParseBytes(existing).IsArray() {
			return fmt.Errorf("%s: %w", path, ErrNotArray)
		}
		if out, err = sjson.SetRawBytes(existing, "-1", data); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(pretty.PrettyOptions(out, prettyOptions)); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
