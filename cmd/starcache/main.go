// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"go.astrophena.name/starcache/internal/cli"
	"go.astrophena.name/starcache/internal/starlark/cache"
	"go.astrophena.name/starcache/internal/starlark/feeds"
	"go.astrophena.name/starcache/internal/starlark/propclass"

	starlarktime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"
)

func main() { cli.Main(new(app)) }

type app struct {
	expr    string
	verbose bool

	httpc *http.Client // set in tests
}

func (a *app) Flags(flags *flag.FlagSet) {
	flags.StringVar(&a.expr, "e", "", "Evaluate `expression` and print its value.")
	flags.BoolVar(&a.verbose, "verbose", false, "Enable verbose logging.")
}

func (a *app) Run(ctx context.Context, env *cli.Env) error {
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(env.Stderr, &slog.HandlerOptions{Level: level}))

	predeclared := starlark.StringDict{
		"cache":  cache.Module(),
		"feeds":  feeds.Module(ctx, a.httpc),
		"types":  propclass.Module(),
		"module": starlark.NewBuiltin("module", starlarkstruct.MakeModule),
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
		"time":   starlarktime.Module,
	}

	thread := &starlark.Thread{
		Name:  "main",
		Print: func(_ *starlark.Thread, msg string) { fmt.Fprintln(env.Stdout, msg) },
	}
	opts := &syntax.FileOptions{
		Set:             true,
		While:           true,
		TopLevelControl: true,
		GlobalReassign:  true,
	}

	if a.expr != "" {
		log.Debug("evaluating expression", "expr", a.expr)
		v, err := starlark.EvalOptions(opts, thread, "<expr>", a.expr, predeclared)
		if err != nil {
			return evalErr(err)
		}
		if v != starlark.None {
			fmt.Fprintln(env.Stdout, v.String())
		}
		return nil
	}

	if len(env.Args) != 1 {
		return fmt.Errorf("%w: exactly one script file is required", cli.ErrInvalidArgs)
	}
	path := env.Args[0]
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	log.Debug("executing script", "path", path)
	if _, err := starlark.ExecFileOptions(opts, thread, path, src, predeclared); err != nil {
		return evalErr(err)
	}
	return nil
}

// evalErr formats a script failure with its Starlark backtrace.
func evalErr(err error) error {
	var ee *starlark.EvalError
	if errors.As(err, &ee) {
		return errors.New(ee.Backtrace())
	}
	return err
}
