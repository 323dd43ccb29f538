// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/apex/log"

	"github.com/staranto/cconv/internal/cacheutil"
	"github.com/staranto/cconv/internal/command"
	"github.com/staranto/cconv/internal/config"
	mylog "github.com/staranto/cconv/internal/log"
	"github.com/staranto/cconv/internal/version"
)

var ctx = context.Background()

// Commands whose first positional arg names a subcommand. Set args are
// inserted after the subcommand instead of after the command.
var hasSubcommands = map[string]bool{
	"assets": true,
}

func main() {
	os.Exit(realMain())
}

func realMain() int {
	mylog.InitLogger()

	args := os.Args

	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "No command specified.")
		args = append(args, "--help")
	} else {
		args = mangleArguments(args)
	}

	// Short-circuit --version/-v.
	for _, a := range args {
		if a == "--version" || a == "-v" {
			fmt.Println(version.String())
			return 0
		}
	}

	// Best-effort: pre-create cache directory when caching is enabled.
	if _, ok, err := cacheutil.EnsureBaseDir(); err != nil && ok {
		// Non-fatal: print to stderr and continue.
		fmt.Fprintln(os.Stderr, err)
	}

	app, err := command.InitApp(ctx, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := app.Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	return 0
}

// mangleArguments expands an @set argument into the args stored under
// <command>.<set> in the config file. Without an @set, the "defaults" set is
// used when one exists.
func mangleArguments(args []string) []string {
	// Flags before the command, or help, are left to the CLI.
	if strings.HasPrefix(args[1], "-") {
		return args
	}

	// The executable and command, and for some commands the subcommand.
	idx := 2
	if hasSubcommands[args[1]] && len(args) > 2 && !strings.HasPrefix(args[2], "-") && !strings.HasPrefix(args[2], "@") {
		idx = 3
	}

	for _, a := range args[idx:] {
		if a == "--help" || a == "-h" {
			return args
		}
	}

	working := make([]string, idx, len(args))
	copy(working, args[:idx])

	// See if there is a @set specified. If so, it is removed from args and its
	// entries take its place.
	set := "defaults"
	found := false
	for _, a := range args[idx:] {
		if !found && strings.HasPrefix(a, "@") && len(a) > 1 {
			set = a[1:]
			found = true
			continue
		}
		working = append(working, a)
	}

	ns := args[1]
	if ns == "cq" {
		ns = "currencies"
	}

	setArgs, _ := config.GetStringSlice(ns + "." + set)
	for _, arg := range setArgs {
		parts := strings.Fields(arg)
		working = append(working[:idx], append(parts, working[idx:]...)...)
		idx += len(parts)
	}

	log.Debugf("idx=%d, set=%s, args=%v", idx, set, working)
	return working
}
