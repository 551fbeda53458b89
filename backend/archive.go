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
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/c2FmZQ/storage"
)

// ArchiveDir is the directory of season 1 snapshots inside the data dir.
var ArchiveDir = filepath.Join("snapshots", SeasonOne)

// Archive keeps a copy of every loaded dataset version.
type Archive struct {
	DataDir string
	storage *storage.Storage
	mu      sync.Mutex
}

// NewArchive creates a new Archive.
func NewArchive(dataDir string, s *storage.Storage) *Archive {
	return &Archive{
		DataDir: dataDir,
		storage: s,
	}
}

// SnapshotName returns the storage name of a dataset version.
func SnapshotName(version uint64) string {
	return filepath.Join(ArchiveDir, fmt.Sprintf("%d.json", version))
}

// Save writes the dataset. Versions restart at 1 with every process, so a
// new process overwrites older snapshots of the same number.
func (a *Archive) Save(ds *Dataset) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := os.MkdirAll(filepath.Join(a.DataDir, ArchiveDir), 0755); err != nil {
		return err
	}
	if err := a.storage.SaveDataFile(SnapshotName(ds.Version), ds); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	return nil
}

// Load reads one snapshot.
func (a *Archive) Load(version uint64) (*Dataset, error) {
	var ds Dataset
	if err := a.storage.ReadDataFile(SnapshotName(version), &ds); err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("ReadDataFile: %w", err)
	}
	return &ds, nil
}

// Versions returns the archived versions in ascending order.
func (a *Archive) Versions() ([]uint64, error) {
	files, err := os.ReadDir(filepath.Join(a.DataDir, ArchiveDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not read archive directory: %w", err)
	}
	var versions []uint64
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		v, err := strconv.ParseUint(strings.TrimSuffix(file.Name(), ".json"), 10, 64)
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}

// All returns an iterator over all archived snapshots, oldest first.
func (a *Archive) All() iter.Seq2[*Dataset, error] {
	return func(yield func(*Dataset, error) bool) {
		versions, err := a.Versions()
		if err != nil {
			yield(nil, err)
			return
		}
		for _, v := range versions {
			ds, err := a.Load(v)
			if !yield(ds, err) {
				return
			}
		}
	}
}

// Latest returns the most recent snapshot.
func (a *Archive) Latest() (*Dataset, error) {
	versions, err := a.Versions()
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, os.ErrNotExist
	}
	return a.Load(versions[len(versions)-1])
}
