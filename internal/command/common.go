// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/cconv/internal/assets"
	"github.com/staranto/cconv/internal/cacheutil"
	"github.com/staranto/cconv/internal/config"
	"github.com/staranto/cconv/internal/converter"
	"github.com/staranto/cconv/internal/meta"
	"github.com/staranto/cconv/internal/metrics"
	"github.com/staranto/cconv/internal/output"
	"github.com/staranto/cconv/internal/remote"
	"github.com/staranto/cconv/internal/store"
)

// noDataMessage is printed when neither the network nor the store had an
// answer. It is not an error.
const noDataMessage = "no data available"

// ShortCircuitTLDR checks the --tldr flag and, if present and available,
// runs `tldr cconv <subcmd>` and returns true so the caller can exit early.
func ShortCircuitTLDR(ctx context.Context, cmd *cli.Command, subcmd string) bool {
	if cmd.Bool("tldr") {
		if _, err := exec.LookPath("tldr"); err == nil {
			c := exec.CommandContext(ctx, "tldr", "cconv", subcmd)
			c.Stdout = os.Stdout
			c.Stderr = os.Stderr
			_ = c.Run()
		}
		return true
	}
	return false
}

// DumpSchemaIfRequested prints the columns of a command's results when
// --schema is set, and returns true if it handled the request.
func DumpSchemaIfRequested(cmd *cli.Command, name string, cols output.Columns) bool {
	if cmd.Bool("schema") {
		output.DumpSchema(cmd.Root().Writer, name, cols)
		return true
	}
	return false
}

// Emit passes results to the common output routine.
func Emit(cmd *cli.Command, results any, cols output.Columns) error {
	return output.SliceDiceSpit(results, cols, cmd, cmd.Root().Writer)
}

// GetMeta returns the meta.Meta stored in the command's Metadata. If missing
// or of an unexpected type, it returns the zero value.
func GetMeta(cmd *cli.Command) meta.Meta {
	if cmd == nil || cmd.Metadata == nil {
		return meta.Meta{}
	}
	if m, ok := cmd.Metadata["meta"].(meta.Meta); ok {
		return m
	}
	return meta.Meta{}
}

// CommandBuilder constructs a cli.Command using a consistent pattern. The
// builder wires metadata, adds the tldr flag, adds the output flags when
// Output is set, and runs GlobalFlagsValidator before the action.
type CommandBuilder struct {
	Name      string
	Aliases   []string
	Usage     string
	UsageText string
	Flags     []cli.Flag
	Commands  []*cli.Command
	Action    func(context.Context, *cli.Command) error
	Meta      meta.Meta
	Output    bool
}

// Build returns a configured cli.Command from the builder.
func (cb *CommandBuilder) Build() *cli.Command {
	flags := append(cb.Flags, newTLDRFlag())
	if cb.Output {
		flags = append(flags, newSchemaFlag())
		flags = append(flags, NewGlobalFlags(cb.Name, cb.Meta.Config.Source)...)
	}

	cmd := &cli.Command{
		Name:      cb.Name,
		Aliases:   cb.Aliases,
		Usage:     cb.Usage,
		UsageText: cb.UsageText,
		Metadata: map[string]any{
			"meta": cb.Meta,
		},
		Flags:    flags,
		Commands: cb.Commands,
		Action:   cb.Action,
	}
	if cb.Action != nil {
		cmd.Before = func(ctx context.Context, c *cli.Command) (context.Context, error) {
			return ctx, GlobalFlagsValidator(ctx, c)
		}
	}
	return cmd
}

// ActionRunner[T] encapsulates the common action pattern for commands that
// emit results: GetMeta, short-circuit checks, fetching, and output emission.
// FetchFn reports found=false when there is nothing to show.
type ActionRunner[T any] struct {
	CommandName string
	Columns     output.Columns
	FetchFn     func(context.Context, *cli.Command) (T, bool, error)
}

// Run executes the action with the provided context and command.
func (ar *ActionRunner[T]) Run(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	if len(m.Args) > 1 {
		log.Debugf("Executing action for %v", m.Args[1:])
	}

	if ShortCircuitTLDR(ctx, cmd, ar.CommandName) {
		return nil
	}
	if DumpSchemaIfRequested(cmd, ar.CommandName, ar.Columns) {
		return nil
	}

	results, found, err := ar.FetchFn(ctx, cmd)
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintln(cmd.Root().ErrWriter, noDataMessage)
		return nil
	}

	return Emit(cmd, results, ar.Columns)
}

// newRemote builds a Remote Data Client from --api-url and --api-key. Every
// client starts with an empty rate cache.
func newRemote(cmd *cli.Command) *remote.Client {
	c := remote.New(cmd.String("api-url"), remote.WithAPIKey(cmd.String("api-key")))
	log.WithField("api", c.BaseURL()).Debug("remote client")
	return c
}

func storeConfig(cmd *cli.Command) store.Config {
	return store.Config{
		Backend:    cmd.String("store"),
		SQLitePath: cmd.String("sqlite-path"),
		RedisURL:   cmd.String("redis-url"),
		S3Bucket:   cmd.String("s3-bucket"),
		S3Prefix:   cmd.String("s3-prefix"),
		S3Region:   cmd.String("s3-region"),
		S3Profile:  cmd.String("s3-profile"),
		S3Endpoint: cmd.String("s3-endpoint"),
	}
}

// newConverter wires a Converter from the command's flags. The returned
// store must be closed by the caller.
func newConverter(cmd *cli.Command, m *metrics.Metrics) (*converter.Converter, store.Store, error) {
	st, err := store.Open(storeConfig(cmd))
	if err != nil {
		return nil, nil, err
	}
	log.Debugf("store: %s", st)
	return converter.New(newRemote(cmd), st, converter.WithMetrics(m)), st, nil
}

// openStorage returns the asset cache rooted under the cache directory.
func openStorage() (*assets.Storage, error) {
	if !cacheutil.Available() {
		return nil, errors.New("asset cache disabled by CCONV_CACHE or no cache directory")
	}
	root, _ := cacheutil.Path("assets")
	return assets.NewStorage(root), nil
}

// assetConfig builds the asset generation described by the asset flags and
// the assets.manifest config key. An empty origin leaves Origin unset, which
// is fine for everything except install and serving.
func assetConfig(cmd *cli.Command, origin string) (assets.Config, error) {
	manifest, _ := config.GetStringSlice("assets.manifest", assets.DefaultManifest)

	cfg := assets.Config{
		App:      cmd.String("app"),
		Version:  int(cmd.Int("assets-version")),
		Manifest: manifest,
	}
	if origin == "" {
		return cfg, nil
	}

	u, err := url.Parse(origin)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse origin (%s): %w", origin, err)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	cfg.Origin = u
	return cfg, nil
}

func newSchemaFlag() *cli.BoolFlag {
	f := *schemaFlag
	return &f
}

func newTLDRFlag() *cli.BoolFlag {
	f := *tldrFlag
	return &f
}
