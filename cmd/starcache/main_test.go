// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"go.astrophena.name/starcache/internal/cli"
	"go.astrophena.name/starcache/internal/testutil"
)

func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var outb, errb bytes.Buffer
	env := &cli.Env{
		Args:   args,
		Getenv: func(string) string { return "" },
		Stdin:  strings.NewReader(""),
		Stdout: &outb,
		Stderr: &errb,
	}
	err = cli.Run(t.Context(), new(app), env)
	return outb.String(), errb.String(), err
}

func TestRun(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		args       []string
		wantErr    error
		wantStdout string
	}{
		"version": {
			args:    []string{"-version"},
			wantErr: cli.ErrExitVersion,
		},
		"no args": {
			args:    []string{},
			wantErr: cli.ErrInvalidArgs,
		},
		"too many args": {
			args:    []string{"a.star", "b.star"},
			wantErr: cli.ErrInvalidArgs,
		},
		"expression": {
			args:       []string{"-e", "1 + 2"},
			wantStdout: "3\n",
		},
		"expression with print": {
			args:       []string{"-e", "print('hi')"},
			wantStdout: "hi\n",
		},
		"property expression": {
			args:       []string{"-e", "cache.property(doc = 'example').doc"},
			wantStdout: `"example"` + "\n",
		},
		"missing script": {
			args:    []string{"testdata/nonexistent.star"},
			wantErr: nil, // os.ReadFile error, checked below
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			stdout, _, err := run(t, tc.args...)
			if name == "missing script" {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("got error %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			testutil.AssertEqual(t, stdout, tc.wantStdout)
		})
	}
}

func TestScripts(t *testing.T) {
	t.Parallel()

	testutil.Run(t, "testdata/*.star", func(t *testing.T, match string) {
		if _, stderr, err := run(t, match); err != nil {
			t.Fatalf("%v\nstderr:\n%s", err, stderr)
		}
	})
}

func TestEvalErrorHasBacktrace(t *testing.T) {
	t.Parallel()

	_, _, err := run(t, "-e", "fail('boom')")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("error does not mention the failure: %v", err)
	}
	if !strings.Contains(err.Error(), "Traceback") {
		t.Fatalf("error carries no backtrace: %v", err)
	}
}
