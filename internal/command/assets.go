// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/staranto/cconv/internal/assets"
	"github.com/staranto/cconv/internal/meta"
	"github.com/staranto/cconv/internal/output"
)

type workerRow struct {
	Role  string `json:"role"`
	Cache string `json:"cache"`
	State string `json:"state"`
}

var workerColumns = output.Columns{
	{Key: "role", Title: "role"},
	{Key: "cache", Title: "cache"},
	{Key: "state", Title: "state"},
}

type entryRow struct {
	Cache  string `json:"cache"`
	Role   string `json:"role,omitempty"`
	Key    string `json:"key"`
	Status int    `json:"status"`
	Bytes  int64  `json:"bytes"`
	Size   string `json:"size"`
	Stored string `json:"stored"`
}

var entryColumns = output.Columns{
	{Key: "cache", Title: "cache"},
	{Key: "role", Title: "role", Hidden: true},
	{Key: "key", Title: "key"},
	{Key: "status", Title: "status", Hidden: true},
	{Key: "bytes", Title: "bytes", Hidden: true},
	{Key: "size", Title: "size"},
	{Key: "stored", Title: "stored"},
}

// restoreRegistration opens the asset cache and reinstates the workers an
// earlier process left behind.
func restoreRegistration(cmd *cli.Command, origin string) (*assets.Registration, *assets.Storage, assets.Config, error) {
	storage, err := openStorage()
	if err != nil {
		return nil, nil, assets.Config{}, err
	}
	cfg, err := assetConfig(cmd, origin)
	if err != nil {
		return nil, nil, assets.Config{}, err
	}

	reg := assets.NewRegistration(storage, nil)
	if err := reg.Restore(cfg, assets.WithDoer(http.DefaultClient)); err != nil {
		return nil, nil, assets.Config{}, err
	}
	return reg, storage, cfg, nil
}

func workerRows(reg *assets.Registration) []workerRow {
	var rows []workerRow
	if w := reg.Controller(); w != nil {
		rows = append(rows, workerRow{Role: "controller", Cache: w.Config().CacheName(), State: w.State().String()})
	}
	if w := reg.Waiting(); w != nil {
		rows = append(rows, workerRow{Role: "waiting", Cache: w.Config().CacheName(), State: w.State().String()})
	}
	return rows
}

func emitWorkers(cmd *cli.Command, reg *assets.Registration) error {
	rows := workerRows(reg)
	if len(rows) == 0 {
		fmt.Fprintln(cmd.Root().ErrWriter, "no asset cache in control")
		return nil
	}
	return Emit(cmd, rows, workerColumns)
}

func AssetsInstallCommandAction(ctx context.Context, cmd *cli.Command) error {
	if ShortCircuitTLDR(ctx, cmd, "assets") {
		return nil
	}

	origin := cmd.String("origin")
	if origin == "" {
		return errors.New("--origin is required to install assets")
	}

	reg, storage, cfg, err := restoreRegistration(cmd, origin)
	if err != nil {
		return err
	}

	w := assets.NewWorker(cfg, storage, assets.WithDoer(http.DefaultClient))
	if cmd.Bool("skip-waiting") {
		w.SkipWaiting()
	}
	if err := reg.Register(ctx, w); err != nil {
		return err
	}
	return emitWorkers(cmd, reg)
}

func AssetsActivateCommandAction(ctx context.Context, cmd *cli.Command) error {
	if ShortCircuitTLDR(ctx, cmd, "assets") {
		return nil
	}

	reg, _, _, err := restoreRegistration(cmd, cmd.String("origin"))
	if err != nil {
		return err
	}
	if reg.Waiting() == nil {
		log.Info("no waiting asset cache")
	}
	if err := reg.PostMessage(ctx, assets.Message{Action: assets.ActionSkipWaiting}); err != nil {
		return err
	}
	return emitWorkers(cmd, reg)
}

func AssetsLsCommandAction(ctx context.Context, cmd *cli.Command) error {
	runner := ActionRunner[[]entryRow]{
		CommandName: "assets",
		Columns:     entryColumns,
		FetchFn: func(ctx context.Context, cmd *cli.Command) ([]entryRow, bool, error) {
			reg, storage, _, err := restoreRegistration(cmd, cmd.String("origin"))
			if err != nil {
				return nil, false, err
			}

			roles := map[string]string{}
			for _, w := range workerRows(reg) {
				roles[w.Cache] = w.Role
			}

			names, err := storage.Keys()
			if err != nil {
				return nil, false, err
			}

			var rows []entryRow
			for _, name := range names {
				cache, err := storage.Open(name)
				if err != nil {
					return nil, false, err
				}
				entries, err := cache.Entries()
				if err != nil {
					return nil, false, err
				}
				for _, e := range entries {
					rows = append(rows, entryRow{
						Cache:  name,
						Role:   roles[name],
						Key:    e.Key,
						Status: e.Status,
						Bytes:  e.Size,
						Size:   humanize.Bytes(uint64(max(e.Size, 0))),
						Stored: humanize.Time(e.Stored),
					})
				}
			}
			return rows, len(rows) > 0, nil
		},
	}
	return runner.Run(ctx, cmd)
}

func AssetsPurgeCommandAction(ctx context.Context, cmd *cli.Command) error {
	if ShortCircuitTLDR(ctx, cmd, "assets") {
		return nil
	}

	reg, storage, cfg, err := restoreRegistration(cmd, "")
	if err != nil {
		return err
	}

	names, err := storage.Keys()
	if err != nil {
		return err
	}
	for _, name := range names {
		if !cmd.Bool("all") && !strings.HasPrefix(name, cfg.Prefix()) {
			continue
		}
		if _, err := storage.Delete(name); err != nil {
			return fmt.Errorf("failed to delete %s: %w", name, err)
		}
		fmt.Fprintf(cmd.Root().Writer, "deleted %s\n", name)
	}
	return reg.Forget()
}

func AssetsCommandBuilder(meta meta.Meta) *cli.Command {
	src := meta.Config.Source

	install := CommandBuilder{
		Name:      "install",
		Usage:     "cache the asset manifest as a new generation",
		UsageText: `cconv assets install --origin URL [options]`,
		Flags: append(NewAssetFlags("assets", src), &cli.BoolFlag{
			Name:  "skip-waiting",
			Usage: "take control even if another generation is active",
		}),
		Action: AssetsInstallCommandAction,
		Meta:   meta,
		Output: true,
	}

	activate := CommandBuilder{
		Name:      "activate",
		Usage:     "let the waiting generation take control",
		UsageText: `cconv assets activate [options]`,
		Flags:     NewAssetFlags("assets", src),
		Action:    AssetsActivateCommandAction,
		Meta:      meta,
		Output:    true,
	}

	ls := CommandBuilder{
		Name:      "ls",
		Usage:     "list cached assets",
		UsageText: `cconv assets ls [options]`,
		Flags:     NewAssetFlags("assets", src),
		Action:    AssetsLsCommandAction,
		Meta:      meta,
		Output:    true,
	}

	purge := CommandBuilder{
		Name:      "purge",
		Usage:     "delete cached assets",
		UsageText: `cconv assets purge [--all]`,
		Flags: append(NewAssetFlags("assets", src), &cli.BoolFlag{
			Name:  "all",
			Usage: "delete the caches of every app, not just this one",
		}),
		Action: AssetsPurgeCommandAction,
		Meta:   meta,
	}

	builder := CommandBuilder{
		Name:      "assets",
		Usage:     "offline asset cache",
		UsageText: `cconv assets install|activate|ls|purge [options]`,
		Commands: []*cli.Command{
			install.Build(),
			activate.Build(),
			ls.Build(),
			purge.Build(),
		},
		Meta: meta,
	}
	return builder.Build()
}
