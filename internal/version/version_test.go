// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	i := Info{
		Version: "v1.0.0",
		Go:      "go1.24",
		OS:      "linux",
		Arch:    "amd64",
	}
	s := i.String()
	if !strings.Contains(s, "v1.0.0") || !strings.Contains(s, "linux/amd64") {
		t.Fatalf("unexpected version string: %q", s)
	}
	if strings.Contains(s, "commit") {
		t.Fatalf("version string mentions a commit without one: %q", s)
	}

	i.Commit = "deadbeef"
	i.BuiltAt = "2026-01-01T00:00:00Z"
	s = i.String()
	if !strings.Contains(s, "commit deadbeef") || !strings.Contains(s, "built at 2026-01-01T00:00:00Z") {
		t.Fatalf("unexpected version string: %q", s)
	}
}

func TestUserAgent(t *testing.T) {
	ua := UserAgent()
	if ua == "" || !strings.Contains(ua, "/") {
		t.Fatalf("unexpected user agent: %q", ua)
	}
	if !strings.HasPrefix(ua, CmdName()+"/") {
		t.Fatalf("user agent %q does not start with the command name", ua)
	}
}
