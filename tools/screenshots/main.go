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

// The screenshots tool renders every view of the stats page in both themes
// and saves a PNG of each.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ttbt-io/pufferstats/backend"
	"github.com/ttbt-io/pufferstats/tools/e2ehelpers"
)

var (
	chromeURL  = flag.String("chrome-url", "", "The url of the remote debugging port")
	outputDir  = flag.String("output-dir", "/screenshots", "Directory to save screenshots")
	datasetDir = flag.String("dataset-dir", ".", "Directory containing the Sorted documents")
	hostName   = flag.String("host", "devtest.local", "The host name the browser uses to reach the server")
)

// shot is one page state to capture.
type shot struct {
	name   string
	season string
	stat   string
	kind   backend.ViewKind
}

func main() {
	flag.Parse()

	if *chromeURL == "" {
		log.Fatal("--chrome-url must be set")
	}

	server, baseURL := startServer()
	defer server.Shutdown(context.Background())
	log.Printf("Server started at %s", baseURL)

	ctx, cancel := chromedp.NewRemoteAllocator(context.Background(), *chromeURL)
	defer cancel()

	ctx, cancel = chromedp.NewContext(ctx, chromedp.WithLogf(log.Printf))
	defer cancel()

	ctx, cancel = context.WithTimeout(ctx, 180*time.Second)
	defer cancel()

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output dir: %v", err)
	}

	shots := []shot{
		{"global", backend.SeasonOne, backend.StatGlobal, backend.ViewGlobal},
		{"coming-soon", backend.SeasonTwo, backend.StatGlobal, backend.ViewComingSoon},
	}
	for _, p := range server.App().Directory.Players() {
		shots = append(shots, shot{"player-" + p.Username, backend.SeasonOne, p.Username, backend.ViewPlayer})
	}

	log.Println("Starting screenshot generation...")
	for _, theme := range []backend.Theme{backend.ThemeLight, backend.ThemeDark} {
		for _, s := range shots {
			if err := capture(ctx, baseURL, theme, s); err != nil {
				debugFailure(ctx, fmt.Sprintf("%s-%s", s.name, theme))
				log.Fatalf("Failed to capture %s (%s): %v", s.name, theme, err)
			}
		}
	}
	log.Println("Screenshots generated successfully.")
}

func capture(ctx context.Context, baseURL string, theme backend.Theme, s shot) error {
	query := url.Values{
		backend.FieldSeason: {s.season},
		backend.FieldStat:   {s.stat},
	}
	if err := e2ehelpers.OpenPage(ctx, baseURL, query); err != nil {
		return err
	}
	var current string
	if err := chromedp.Run(ctx, e2ehelpers.Theme(&current)); err != nil {
		return err
	}
	if current != string(theme) {
		if _, err := e2ehelpers.ToggleTheme(ctx); err != nil {
			return err
		}
	}
	if err := chromedp.Run(ctx,
		e2ehelpers.WaitForView(s.kind),
		chromedp.Sleep(300*time.Millisecond),
	); err != nil {
		return err
	}
	return e2ehelpers.CaptureScreenshot(ctx, filepath.Join(*outputDir, fmt.Sprintf("%s-%s.png", s.name, theme)))
}

func debugFailure(ctx context.Context, name string) {
	log.Printf("DEBUG: capturing failure info for %s", name)
	var htmlContent string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &htmlContent)); err != nil {
		log.Printf("DEBUG: Failed to capture HTML: %v", err)
	} else {
		log.Printf("DEBUG: HTML Dump for %s:\n%s", name, htmlContent)
	}
	if err := e2ehelpers.CaptureScreenshot(ctx, filepath.Join(*outputDir, "debug-"+name+".png")); err != nil {
		log.Printf("DEBUG: %v", err)
	}
}

func startServer() (*backend.Server, string) {
	cert, err := e2ehelpers.GenerateSelfSignedCert()
	if err != nil {
		log.Fatalf("Failed to generate cert: %v", err)
	}
	dataDir, err := os.MkdirTemp("", "screenshots")
	if err != nil {
		log.Fatalf("Failed to create data dir: %v", err)
	}
	l, err := net.Listen("tcp", "0.0.0.0:0")
	if err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}
	server, err := backend.StartServer(backend.Options{
		Listener:   l,
		Cert:       cert,
		DataDir:    dataDir,
		DatasetDir: *datasetDir,
	})
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	for start := time.Now(); server.App().Loader.Version() == 0; time.Sleep(100 * time.Millisecond) {
		if time.Since(start) > 30*time.Second {
			log.Fatalf("Dataset not loaded: %+v", server.App().Loader.Status())
		}
	}
	_, port, _ := net.SplitHostPort(l.Addr().String())
	return server, fmt.Sprintf("https://%s:%s", *hostName, port)
}
