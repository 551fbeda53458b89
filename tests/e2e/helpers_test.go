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
	"github.com/ttbt-io/pufferstats/tools/e2ehelpers"
)

var generateSelfSignedCert = e2ehelpers.GenerateSelfSignedCert
var CaptureScreenshot = e2ehelpers.CaptureScreenshot
var OpenPage = e2ehelpers.OpenPage
var LoginWithUser = e2ehelpers.LoginWithUser
var SelectSeason = e2ehelpers.SelectSeason
var SelectStat = e2ehelpers.SelectStat
var WaitForView = e2ehelpers.WaitForView
var WaitForVersion = e2ehelpers.WaitForVersion
var Theme = e2ehelpers.Theme
var ToggleTheme = e2ehelpers.ToggleTheme
var ContentText = e2ehelpers.ContentText
var WaitContains = e2ehelpers.WaitContains
