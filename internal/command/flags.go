// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"os/exec"

	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/staranto/cconv/internal/assets"
	"github.com/staranto/cconv/internal/remote"
	"github.com/staranto/cconv/internal/store"
)

var (
	schemaFlag *cli.BoolFlag = &cli.BoolFlag{
		Name:        "schema",
		Usage:       "dump the names available to --filter and --sort",
		HideDefault: true,
	}

	tldrFlag *cli.BoolFlag = &cli.BoolFlag{
		Name:        "tldr",
		Usage:       "show tldr page",
		Hidden:      !pathHas("tldr"),
		HideDefault: true,
	}
)

// NewGlobalFlags returns the output flags shared by every command. params[0]
// is the command name and params[1] the config file.
func NewGlobalFlags(params ...string) (flags []cli.Flag) {
	ns, src := params[0], params[1]

	flags = []cli.Flag{
		&cli.BoolWithInverseFlag{
			Name:    "color",
			Aliases: []string{"c"},
			Usage:   "enable colored text output",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(ns+"."+"color", altsrc.StringSourcer(src)),
				yaml.YAML("color", altsrc.StringSourcer(src)),
			),
			Value: false,
		},
		&cli.StringFlag{
			Name:    "filter",
			Aliases: []string{"f"},
			Usage:   "comma-separated list of filters to apply to results",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("CCONV_OUTPUT"),
				yaml.YAML(ns+"."+"output", altsrc.StringSourcer(src)),
				yaml.YAML("output", altsrc.StringSourcer(src)),
			),
			Value: "text",
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator, OutputValidator)
			},
		},
		&cli.StringFlag{
			Name:    "sort",
			Aliases: []string{"s"},
			Usage:   "comma-separated list of attributes to sort the results by",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(ns+"."+"sort", altsrc.StringSourcer(src)),
			),
		},
		&cli.BoolWithInverseFlag{
			Name:    "titles",
			Aliases: []string{"t"},
			Usage:   "show titles with text output",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(ns+"."+"titles", altsrc.StringSourcer(src)),
				yaml.YAML("titles", altsrc.StringSourcer(src)),
			),
			Value: false,
		},
	}

	return
}

// NewAPIFlags returns the flags locating the remote currency API.
func NewAPIFlags(ns string, src string) []cli.Flag {
	return []cli.Flag{
		ConfigKeyValueChain(ns, src, "api.url", &cli.StringFlag{
			Name:    "api-url",
			Usage:   "base url of the currency API",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CCONV_API_URL")),
			Value:   remote.DefaultBaseURL,
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator, URLValidator)
			},
		}),
		ConfigKeyValueChain(ns, src, "api.key", &cli.StringFlag{
			Name:    "api-key",
			Usage:   "currency API key, if the service requires one",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CCONV_API_KEY")),
		}),
	}
}

// NewStoreFlags returns the flags selecting the offline store backend.
func NewStoreFlags(ns string, src string) []cli.Flag {
	return []cli.Flag{
		ConfigKeyValueChain(ns, src, "store.backend", &cli.StringFlag{
			Name:    "store",
			Usage:   "offline store backend (file, sqlite, redis, s3, none)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CCONV_STORE")),
			Value:   store.BackendFile,
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator, StoreValidator)
			},
		}),
		ConfigKeyValueChain(ns, src, "store.sqlite.path", &cli.StringFlag{
			Name:    "sqlite-path",
			Usage:   "sqlite database file for --store=sqlite",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CCONV_SQLITE_PATH")),
		}),
		ConfigKeyValueChain(ns, src, "store.redis.url", &cli.StringFlag{
			Name:  "redis-url",
			Usage: "redis url for --store=redis",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("CCONV_REDIS_URL"),
				cli.EnvVar("REDIS_URL"),
			),
		}),
		ConfigKeyValueChain(ns, src, "store.s3.bucket", &cli.StringFlag{
			Name:    "s3-bucket",
			Usage:   "bucket for --store=s3",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CCONV_S3_BUCKET")),
		}),
		ConfigKeyValueChain(ns, src, "store.s3.prefix", &cli.StringFlag{
			Name:    "s3-prefix",
			Usage:   "object key prefix for --store=s3",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CCONV_S3_PREFIX")),
		}),
		ConfigKeyValueChain(ns, src, "store.s3.region", &cli.StringFlag{
			Name:  "s3-region",
			Usage: "aws region for --store=s3",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("CCONV_S3_REGION"),
				cli.EnvVar("AWS_REGION"),
			),
		}),
		ConfigKeyValueChain(ns, src, "store.s3.profile", &cli.StringFlag{
			Name:  "s3-profile",
			Usage: "aws shared config profile for --store=s3",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("CCONV_S3_PROFILE"),
				cli.EnvVar("AWS_PROFILE"),
			),
		}),
		ConfigKeyValueChain(ns, src, "store.s3.endpoint", &cli.StringFlag{
			Name:    "s3-endpoint",
			Usage:   "custom S3 endpoint, e.g. a local minio",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CCONV_S3_ENDPOINT")),
		}),
	}
}

// NewAssetFlags returns the flags describing the cached asset generation.
func NewAssetFlags(ns string, src string) []cli.Flag {
	return []cli.Flag{
		ConfigKeyValueChain(ns, src, "assets.app", &cli.StringFlag{
			Name:  "app",
			Usage: "application name used in asset cache names",
			Value: assets.DefaultApp,
		}),
		&cli.IntFlag{
			Name:  "assets-version",
			Usage: "asset cache generation, bump it to replace cached assets",
			Value: assets.DefaultVersion,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("CCONV_ASSETS_VERSION"),
				yaml.YAML(ns+".assets.version", altsrc.StringSourcer(src)),
				yaml.YAML("assets.version", altsrc.StringSourcer(src)),
			),
		},
		ConfigKeyValueChain(ns, src, "assets.origin", &cli.StringFlag{
			Name:    "origin",
			Usage:   "origin the page is served from",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CCONV_ORIGIN")),
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator, URLValidator)
			},
		}),
	}
}

// ConfigKeyValueChain adds namespaced and global config file sources for key
// to the given flag's Sources chain.
func ConfigKeyValueChain(ns string, path string, key string, flag *cli.StringFlag) *cli.StringFlag {
	src := yaml.YAML(ns+"."+key, altsrc.StringSourcer(path))
	flag.Sources.Chain = append(flag.Sources.Chain, src)

	src = yaml.YAML(key, altsrc.StringSourcer(path))
	flag.Sources.Chain = append(flag.Sources.Chain, src)

	return flag
}

// pathHas checks if the given executable is on PATH.
func pathHas(target string) bool {
	_, err := exec.LookPath(target)
	return err == nil
}
