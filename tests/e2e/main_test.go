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

package e2e

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/ttbt-io/pufferstats/backend"
)

var (
	withChromeDP = flag.String("with-chromedp", "", "The url of the remote debugging port")
	hostName     = flag.String("host", "devtest.local", "The host name the browser uses to reach the test server")
)

const testAdmin = "admin@example.com"

const (
	testDeathsJSON = `{"AtlasV1224": 12, "Pinkmoney": 3}`
	testLootrJSON  = `{
  "lootrTotal": 42,
  "Total": {"AtlasV1224": 16, "Pinkmoney": 1},
  "ByTable": {
    "AtlasV1224": {
      "minecraft:chests/f": 9,
      "minecraft:chests/a": 3,
      "minecraft:chests/b": 2,
      "minecraft:chests/c": 1,
      "minecraft:chests/d": 1,
      "minecraft:chests/e": 0
    },
    "Pinkmoney": {"minecraft:chests/village/village_weaponsmith": 1}
  }
}`
	testMiscJSON = `{"daysPlayedIRL": 90.7, "playerCount": 18, "daysPlayed": 512.3, "totalDistanceCM": 123456789}`
)

func TestMain(m *testing.M) {
	flag.Parse()
	exitCode := m.Run()
	os.Exit(exitCode)
}

// testServer is a running stats server over a dataset directory the test
// can rewrite.
type testServer struct {
	URL        string
	DatasetDir string
	Server     *backend.Server
}

// writeResource replaces one of the Sorted documents.
func (s *testServer) writeResource(t *testing.T, name, content string) {
	t.Helper()
	p := filepath.Join(s.DatasetDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

// reload asks the server to reload the dataset as the admin.
func (s *testServer) reload(t *testing.T) {
	t.Helper()
	client := http.Client{Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}}
	req, err := http.NewRequest("POST", s.URL+"/api/admin/reload", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.AddCookie(&http.Cookie{Name: "mock_auth_user", Value: testAdmin})
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reload status = %d", resp.StatusCode)
	}
}

func startTestServer(t *testing.T) *testServer {
	cert, err := generateSelfSignedCert()
	if err != nil {
		t.Fatalf("Failed to generate self-signed cert: %v", err)
	}

	ts := &testServer{DatasetDir: t.TempDir()}
	ts.writeResource(t, backend.ResourceDeaths, testDeathsJSON)
	ts.writeResource(t, backend.ResourceLootr, testLootrJSON)
	ts.writeResource(t, backend.ResourceMisc, testMiscJSON)

	// Listen on a random free port on all interfaces (IPv4 forced)
	l, err := net.Listen("tcp", "0.0.0.0:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	_, port, _ := net.SplitHostPort(l.Addr().String())
	ts.URL = fmt.Sprintf("https://%s:%s", *hostName, port)

	ts.Server, err = backend.StartServer(backend.Options{
		Listener:    l,
		Cert:        cert,
		Debug:       true,
		DataDir:     t.TempDir(),
		DatasetDir:  ts.DatasetDir,
		UseMockAuth: true,
		Admins:      testAdmin,
	})
	if err != nil {
		t.Fatalf("StartServer: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ts.Server.Shutdown(ctx)
	})

	localURL := fmt.Sprintf("https://localhost:%s", port)
	if err := waitForServer(localURL+"/api/status", 10*time.Second); err != nil {
		t.Fatalf("Server did not start: %v", err)
	}
	for start := time.Now(); ts.Server.App().Loader.Version() == 0; {
		if time.Since(start) > 10*time.Second {
			t.Fatalf("dataset not loaded: %+v", ts.Server.App().Loader.Status())
		}
		time.Sleep(100 * time.Millisecond)
	}
	return ts
}

func waitForServer(url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	tr := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
	client := http.Client{Transport: tr}
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}

	for start := time.Now(); time.Since(start) < timeout; {
		resp, err := client.Do(req)
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			log.Printf("Server at %s is ready!", url)
			return nil
		}
		log.Printf("waitForServer(%q): %v", url, err)
		if resp != nil {
			resp.Body.Close()
		}
		time.Sleep(500 * time.Millisecond)
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return fmt.Errorf("timeout waiting for server at %s", url)
}

// newBrowser returns a browser context that fails the test on any console
// error or uncaught exception.
func newBrowser(t *testing.T) context.Context {
	if *withChromeDP == "" {
		t.Skip("--with-chromedp not set")
	}
	ctx, cancel := chromedp.NewRemoteAllocator(t.Context(), *withChromeDP)
	t.Cleanup(cancel)
	ctx, cancel = chromedp.NewContext(ctx,
		chromedp.WithErrorf(log.Printf),
		chromedp.WithLogf(log.Printf),
	)
	t.Cleanup(cancel)
	ctx, cancel = context.WithTimeout(ctx, 60*time.Second)
	t.Cleanup(cancel)

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			if ev.Type == runtime.APITypeError {
				args := make([]string, len(ev.Args))
				for i, arg := range ev.Args {
					args[i] = string(arg.Value)
				}
				t.Logf("JS CONSOLE ERROR: %s", strings.Join(args, " "))
				t.Fail()
				cancel()
			}
		case *runtime.EventExceptionThrown:
			t.Logf("JS EXCEPTION: %s", ev.ExceptionDetails.Text)
			t.Fail()
			cancel()
		}
	})
	return ctx
}

func runStep(t *testing.T, ctx context.Context, description string, actions ...chromedp.Action) {
	t.Helper()
	t.Logf("STEP: %s", description)
	for i, action := range actions {
		if err := chromedp.Run(ctx, action); err != nil {
			CaptureScreenshot(ctx, filepath.Join(t.TempDir(), "debug-failed-action.png"))
			t.Fatalf("STEP FAILED: %s [Action#%d]: %v", description, i, err)
		}
	}
}
