// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

const sampleDoc = "# cconv rate\n\n" +
	"## Short description\n\n" +
	"Show the exchange rate between two currencies.\n\n" +
	"## Quick examples\n\n" +
	"```\n" +
	"# Rate from US dollars to CFA francs\n" +
	"cconv rate USD XAF\n\n" +
	"cconv   rate EUR   USD\n" +
	"```\n"

func TestExtractTitleAndShortDesc(t *testing.T) {
	title, short := extractTitleAndShortDesc(sampleDoc)
	assert.Equal(t, "cconv rate", title)
	assert.Equal(t, "Show the exchange rate between two currencies.", short)

	title, short = extractTitleAndShortDesc("# cconv serve\n\nNothing else.\n")
	assert.Equal(t, "cconv serve", title)
	assert.Equal(t, "cconv serve.", short)
}

func TestExtractQuickExamples(t *testing.T) {
	exs := extractQuickExamples(sampleDoc)
	require.Len(t, exs, 2)
	assert.Equal(t, example{Desc: "Rate from US dollars to CFA francs", Cmd: "cconv rate USD XAF"}, exs[0])
	assert.Equal(t, "Example", exs[1].Desc)

	assert.Nil(t, extractQuickExamples("# nothing here"))
}

func TestSections(t *testing.T) {
	got := sections(sampleDoc + "\n## Flags\n\n- `--to`\n")
	assert.Equal(t, "Show the exchange rate between two currencies.", got["short description"])
	assert.Equal(t, "- `--to`", got["flags"])
	assert.Contains(t, got["quick examples"], "cconv rate USD XAF")
	assert.NotContains(t, got["quick examples"], "--to")
}

func TestBuildTLDR(t *testing.T) {
	got := buildTLDR(tldrPage{
		Name:     "rate",
		Short:    "Show rates.",
		Examples: extractQuickExamples(sampleDoc),
	})
	assert.True(t, strings.HasPrefix(got, "# cconv-rate\n\n> Show rates.\n> More information:"))
	assert.Contains(t, got, "- Rate from US dollars to CFA francs:\n\n`cconv rate USD XAF`\n")
	assert.Contains(t, got, "`cconv rate EUR USD`")

	aliased := buildTLDR(tldrPage{Name: "currencies", Usage: "currency list query", Aliases: []string{"cq"}})
	assert.Contains(t, aliased, "> currency list query\n> Aliases: cq.\n")

	fallback := buildTLDR(tldrPage{Name: "serve"})
	assert.Contains(t, fallback, "> cconv serve\n")
	assert.Contains(t, fallback, "`cconv serve --help`")
}

func TestSeeAlso(t *testing.T) {
	app := &cli.Command{Name: "cconv", Commands: []*cli.Command{
		{Name: "rate"}, {Name: "convert"}, {Name: "secret", Hidden: true},
	}}
	assert.Equal(t, "## See also\n\ncconv-convert(1)\n", seeAlso(app, "rate"))
	assert.Empty(t, seeAlso(&cli.Command{Commands: []*cli.Command{{Name: "rate"}}}, "rate"))
}

func TestDocsParse(t *testing.T) {
	entries, err := os.ReadDir(filepath.Join("..", "..", "docs", "commands"))
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for _, e := range entries {
		t.Run(e.Name(), func(t *testing.T) {
			raw, err := os.ReadFile(filepath.Join("..", "..", "docs", "commands", e.Name()))
			require.NoError(t, err)

			title, short := extractTitleAndShortDesc(string(raw))
			assert.Equal(t, "cconv "+strings.TrimSuffix(e.Name(), ".md"), title)
			assert.NotEqual(t, title+".", short)
			assert.NotEmpty(t, extractQuickExamples(string(raw)))
		})
	}
}

func TestFlagsMarkdown(t *testing.T) {
	c := &cli.Command{
		Name: "assets",
		Commands: []*cli.Command{
			{
				Name: "install",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "origin", Usage: "origin the page is served from", Sources: cli.EnvVars("CCONV_ORIGIN")},
					&cli.BoolFlag{Name: "skip-waiting", Aliases: []string{"s"}},
				},
			},
		},
	}

	got := flagsMarkdown(c)
	assert.Contains(t, got, "## Flags\n")
	assert.Contains(t, got, "### assets install\n")
	assert.Contains(t, got, "- `--origin`: origin the page is served from (env CCONV_ORIGIN)\n")
	assert.Contains(t, got, "- `--skip-waiting`, `-s`\n")
}

func TestWriteFileIfChanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.md")

	require.NoError(t, writeFileIfChanged(path, []byte("a\n"), true))
	info, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, writeFileIfChanged(path, []byte("a"), true))
	again, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), again.ModTime())

	require.NoError(t, writeFileIfChanged(path, []byte("b"), true))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "b", string(b))
}
