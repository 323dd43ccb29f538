// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/cconv/internal/assets"
	"github.com/staranto/cconv/internal/converter"
	"github.com/staranto/cconv/internal/meta"
	"github.com/staranto/cconv/internal/metrics"
	"github.com/staranto/cconv/internal/server"
	"github.com/staranto/cconv/internal/store"
)

const defaultAddr = "localhost:8080"

func ServeCommandAction(ctx context.Context, cmd *cli.Command) error {
	if ShortCircuitTLDR(ctx, cmd, "serve") {
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// One store for the life of the server. Converters, and their rate
	// caches, come and go with page reloads.
	st, err := store.Open(storeConfig(cmd))
	if err != nil {
		return err
	}
	defer st.Close()

	buildConverter := func() server.Converter {
		return converter.New(newRemote(cmd), st, converter.WithMetrics(m))
	}

	site := http.FileServer(http.Dir(cmd.String("site")))

	ln, err := net.Listen("tcp", cmd.String("addr"))
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cmd.String("addr"), err)
	}

	origin := cmd.String("origin")
	if origin == "" {
		origin = "http://" + ln.Addr().String() + "/"
	}

	var (
		reg        *assets.Registration
		worker     *assets.Worker
		workerOpts = []assets.WorkerOption{assets.WithDoer(http.DefaultClient), assets.WithMetrics(m)}
	)
	if storage, err := openStorage(); err != nil {
		log.WithError(err).Warn("serving the site without an asset cache")
	} else {
		cfg, err := assetConfig(cmd, origin)
		if err != nil {
			_ = ln.Close()
			return err
		}
		reg = assets.NewRegistration(storage, site)
		if err := reg.Restore(cfg, workerOpts...); err != nil {
			log.WithError(err).Warn("failed to restore asset registration")
		}
		worker = assets.NewWorker(cfg, storage, workerOpts...)
		if cmd.Bool("skip-waiting") {
			worker.SkipWaiting()
		}
	}

	srv := server.New(server.Config{
		NewConverter: buildConverter,
		Registration: reg,
		Site:         site,
		Metrics:      m,
	})

	// The worker fetches the manifest from this very server, so it can only
	// install once the listener is up.
	if worker != nil {
		go func() {
			if err := reg.Register(ctx, worker); err != nil {
				log.WithError(err).Error("asset install failed")
			}
		}()
	}

	fmt.Fprintf(cmd.Root().Writer, "serving %s on %s\n", cmd.String("site"), origin)
	return srv.Serve(ctx, ln)
}

func ServeCommandBuilder(meta meta.Meta) *cli.Command {
	src := meta.Config.Source

	flags := []cli.Flag{
		ConfigKeyValueChain("serve", src, "addr", &cli.StringFlag{
			Name:    "addr",
			Usage:   "address to listen on",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CCONV_ADDR")),
			Value:   defaultAddr,
		}),
		ConfigKeyValueChain("serve", src, "site", &cli.StringFlag{
			Name:    "site",
			Usage:   "directory holding the page and its assets",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CCONV_SITE")),
			Value:   ".",
		}),
		&cli.BoolFlag{
			Name:  "skip-waiting",
			Usage: "let a new asset generation take control without waiting",
		},
	}
	flags = append(flags, NewAPIFlags("serve", src)...)
	flags = append(flags, NewStoreFlags("serve", src)...)
	flags = append(flags, NewAssetFlags("serve", src)...)

	builder := CommandBuilder{
		Name:      "serve",
		Usage:     "serve the converter page, its API and its offline cache",
		UsageText: `cconv serve [--addr HOST:PORT] [--site DIR] [options]`,
		Flags:     flags,
		Action:    ServeCommandAction,
		Meta:      meta,
	}
	return builder.Build()
}
