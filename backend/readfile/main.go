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

// Command readfile prints archived dataset snapshots as JSON.
//
// Arguments are snapshot versions, "latest", or "all". Without arguments the
// archived versions are listed.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/c2FmZQ/storage"
	"github.com/c2FmZQ/storage/crypto"
	"github.com/tidwall/pretty"
	"github.com/ttbt-io/pufferstats/backend"
)

var (
	dataDir = flag.String("data-dir", "data", "Directory for archived dataset snapshots")
)

func main() {
	flag.Parse()
	// Initialize Encryption Key and Storage
	var masterKey crypto.MasterKey
	keyFile := filepath.Join(*dataDir, "master.key")
	if passphrase := os.Getenv("PS_MASTER_KEY"); passphrase != "" {
		var err error
		if masterKey, err = crypto.ReadMasterKey([]byte(passphrase), keyFile); err != nil {
			log.Fatalf("Failed to read master key: %v", err)
		}
	} else if _, err := os.Stat(keyFile); err == nil {
		log.Fatalf("Critical Security Error: %s exists but PS_MASTER_KEY is not set. Refusing to read encrypted data in unencrypted mode.", keyFile)
	}
	store := storage.New(*dataDir, masterKey)
	archive := backend.NewArchive(*dataDir, store)

	dump := func(ds *backend.Dataset) {
		fmt.Printf("=========== version %d (%s) ===========\n", ds.Version, ds.LoadedAt.Format("2006-01-02 15:04:05Z07:00"))
		b, err := json.Marshal(ds)
		if err != nil {
			log.Printf("JSON: version %d: %v", ds.Version, err)
			return
		}
		os.Stdout.Write(pretty.Pretty(b))
	}

	if flag.NArg() == 0 {
		versions, err := archive.Versions()
		if err != nil {
			log.Fatalf("%v", err)
		}
		for _, v := range versions {
			fmt.Println(backend.SnapshotName(v))
		}
		return
	}

	for _, arg := range flag.Args() {
		switch arg {
		case "latest":
			ds, err := archive.Latest()
			if err != nil {
				log.Printf("latest: %v", err)
				continue
			}
			dump(ds)
		case "all":
			for ds, err := range archive.All() {
				if err != nil {
					log.Printf("all: %v", err)
					continue
				}
				dump(ds)
			}
		default:
			v, err := strconv.ParseUint(arg, 10, 64)
			if err != nil {
				log.Printf("%s: not a version", arg)
				continue
			}
			ds, err := archive.Load(v)
			if err != nil {
				log.Printf("%s: %v", arg, err)
				continue
			}
			dump(ds)
		}
	}
}
