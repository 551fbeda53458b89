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

// Package e2ehelpers drives the stats page in a browser for the end-to-end
// tests and the screenshot tool.
package e2ehelpers

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log"
	"math/big"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ttbt-io/pufferstats/backend"
)

// Logger interface allows passing *testing.T or log.Printf
type Logger interface {
	Logf(format string, args ...any)
}

// CaptureScreenshot captures a screenshot and saves it to the specified filename.
func CaptureScreenshot(ctx context.Context, filename string) error {
	var buf []byte
	if err := chromedp.Run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create directory for screenshot: %w", err)
	}
	if err := os.WriteFile(filename, buf, 0644); err != nil {
		return fmt.Errorf("failed to write screenshot to file: %w", err)
	}
	log.Printf("Saved screenshot to %s", filename)
	return nil
}

func DisableCSSAnimations() chromedp.ActionFunc {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		return chromedp.Evaluate(`
                        const style = document.createElement('style');
                        style.innerHTML = '*{-webkit-transition-duration:0s!important;transition-duration:0s!important;-webkit-animation-duration:0s!important;animation-duration:0s!important;}';
                        document.head.appendChild(style);
                `, nil).Do(ctx)
	})
}

// GenerateSelfSignedCert returns a certificate for localhost and the
// devtest host names.
func GenerateSelfSignedCert() (*tls.Certificate, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{Organization: []string{"Test Org"}},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(time.Hour * 24),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost", "devtest", "devtest.local", "devtest.public"},
	}
	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return nil, err
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: derBytes})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

// OpenPage clears cookies and opens the stats page with the given query.
func OpenPage(ctx context.Context, baseURL string, query url.Values) error {
	target := baseURL + "/"
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	log.Printf("OpenPage: %s", target)
	return chromedp.Run(ctx,
		network.ClearBrowserCookies(),
		chromedp.Navigate(target),
		chromedp.WaitVisible(`#main`, chromedp.ByQuery),
		DisableCSSAnimations(),
	)
}

// LoginWithUser sets the mock user cookie and reloads the page.
func LoginWithUser(ctx context.Context, baseURL, email string) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid baseURL %q: %w", baseURL, err)
	}
	return chromedp.Run(ctx,
		network.SetCookie("mock_auth_user", email).
			WithDomain(u.Hostname()).
			WithPath("/").
			WithSecure(u.Scheme == "https"),
		chromedp.Reload(),
		chromedp.WaitVisible(`#main`, chromedp.ByQuery),
	)
}

// SelectSeason clicks the season radio button with the given value.
func SelectSeason(season string) chromedp.Action {
	return chromedp.Click(fmt.Sprintf(`input[name=%q][value=%q]`, backend.FieldSeason, season), chromedp.ByQuery)
}

// SelectStat clicks the stat radio button with the given value.
func SelectStat(stat string) chromedp.Action {
	return chromedp.Click(fmt.Sprintf(`input[name=%q][value=%q]`, backend.FieldStat, stat), chromedp.ByQuery)
}

// WaitForView waits until the content area shows a view of the given kind.
func WaitForView(kind backend.ViewKind) chromedp.Action {
	return chromedp.WaitVisible(fmt.Sprintf(`#main[data-view=%q]`, kind.String()), chromedp.ByQuery)
}

// WaitForVersion waits until the content area was rendered from the given
// data version.
func WaitForVersion(version uint64) chromedp.Action {
	return chromedp.Poll(
		fmt.Sprintf(`document.getElementById('main').dataset.version === '%d'`, version),
		nil, chromedp.WithPollingInterval(200*time.Millisecond), chromedp.WithPollingTimeout(10*time.Second))
}

// Theme reads the theme applied to the document.
func Theme(theme *string) chromedp.Action {
	return chromedp.Evaluate(`document.documentElement.getAttribute('data-theme')`, theme)
}

// ToggleTheme clicks the theme toggle and waits for the document theme to
// change.
func ToggleTheme(ctx context.Context) (string, error) {
	var before string
	if err := chromedp.Run(ctx, Theme(&before)); err != nil {
		return "", err
	}
	log.Printf("ToggleTheme: from %q", before)
	if err := chromedp.Run(ctx,
		chromedp.Click(`#theme-toggle`, chromedp.ByQuery),
		chromedp.Poll(
			fmt.Sprintf(`document.documentElement.getAttribute('data-theme') !== %q`, before),
			nil, chromedp.WithPollingInterval(100*time.Millisecond), chromedp.WithPollingTimeout(5*time.Second)),
	); err != nil {
		return "", err
	}
	var after string
	err := chromedp.Run(ctx, Theme(&after))
	return after, err
}

// ContentText returns the visible text of the element with blank lines
// removed and each line trimmed.
func ContentText(selector string, text *string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var raw string
		if err := chromedp.Text(selector, &raw, chromedp.ByQuery).Do(ctx); err != nil {
			return err
		}
		var lines []string
		for _, line := range strings.Split(raw, "\n") {
			if line = strings.Join(strings.Fields(line), " "); line != "" {
				lines = append(lines, line)
			}
		}
		*text = strings.Join(lines, "\n")
		return nil
	})
}

// WaitContains waits until the element's text contains want.
func WaitContains(l Logger, selector, want string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		timeout := time.After(10 * time.Second)
		var text string
		for {
			if err := chromedp.Text(selector, &text, chromedp.ByQuery).Do(ctx); err == nil && strings.Contains(text, want) {
				return nil
			}
			if l != nil {
				l.Logf("WaitContains: %s = %q, want %q", selector, text, want)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timeout:
				return fmt.Errorf("timeout waiting for %s to contain %q (got %q)", selector, want, text)
			case <-ticker.C:
			}
		}
	})
}
