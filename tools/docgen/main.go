// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	md2man "github.com/cpuguy83/go-md2man/v2/md2man"
	"github.com/urfave/cli/v3"

	"github.com/staranto/cconv/internal/command"
)

// docgen renders docs/commands/<cmd>.md, together with what the cconv command
// tree knows about <cmd> (flags, env vars, aliases, sibling commands), into
//
//	docs/man/share/man1/cconv-<cmd>.1  (md2man)
//	docs/tldr/cconv-<cmd>.md           (short description and quick examples)

func main() {
	var (
		repoRoot           string
		commandsDir        string
		manOutDir          string
		tldrOutDir         string
		writeOnlyIfChanged bool
	)

	flag.StringVar(&repoRoot, "root", ".", "repo root (default current dir)")
	flag.BoolVar(&writeOnlyIfChanged, "only-if-changed", true, "only write files if content changed")
	flag.Parse()

	commandsDir = filepath.Join(repoRoot, "docs", "commands")
	manOutDir = filepath.Join(repoRoot, "docs", "man", "share", "man1")
	tldrOutDir = filepath.Join(repoRoot, "docs", "tldr")

	if err := os.MkdirAll(manOutDir, 0o755); err != nil {
		fatalf("creating man output dir: %v", err)
	}
	if err := os.MkdirAll(tldrOutDir, 0o755); err != nil {
		fatalf("creating tldr output dir: %v", err)
	}

	app, err := command.InitApp(context.Background(), []string{"cconv"})
	if err != nil {
		fatalf("building command tree: %v", err)
	}

	entries, err := os.ReadDir(commandsDir)
	if err != nil {
		fatalf("reading commands dir %s: %v", commandsDir, err)
	}

	var processed int
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		cmd := strings.TrimSuffix(e.Name(), ".md")
		inPath := filepath.Join(commandsDir, e.Name())
		raw, err := os.ReadFile(inPath)
		if err != nil {
			fatalf("reading %s: %v", inPath, err)
		}

		page := tldrPage{Name: cmd}
		if c := findCommand(app, cmd); c != nil {
			page.Aliases = c.Aliases
			page.Usage = c.Usage
			raw = append(bytes.TrimRight(raw, "\n"), []byte("\n\n"+flagsMarkdown(c)+"\n"+seeAlso(app, cmd))...)
		}

		// Generate man page from full markdown
		manBytes := md2man.Render(raw)
		manPath := filepath.Join(manOutDir, fmt.Sprintf("cconv-%s.1", cmd))
		if err := writeFileIfChanged(manPath, manBytes, writeOnlyIfChanged); err != nil {
			fatalf("writing man page for %s: %v", cmd, err)
		}

		// Generate TLDR page from short description + quick examples
		page.Title, page.Short = extractTitleAndShortDesc(string(raw))
		page.Examples = extractQuickExamples(string(raw))
		tldrPath := filepath.Join(tldrOutDir, fmt.Sprintf("cconv-%s.md", cmd))
		if err := writeFileIfChanged(tldrPath, []byte(buildTLDR(page)), writeOnlyIfChanged); err != nil {
			fatalf("writing TLDR for %s: %v", cmd, err)
		}

		processed++
	}

	if processed == 0 {
		fatalf("no command markdown found under %s", commandsDir)
	}
}

// findCommand returns the top level command called name.
func findCommand(app *cli.Command, name string) *cli.Command {
	for _, c := range app.Commands {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// flagsMarkdown renders the flags of c, and of each of its subcommands, as a
// markdown section.
func flagsMarkdown(c *cli.Command) string {
	var b strings.Builder
	b.WriteString("## Flags\n")

	var walk func(prefix string, c *cli.Command)
	walk = func(prefix string, c *cli.Command) {
		name := strings.TrimSpace(prefix + " " + c.Name)
		if len(c.Flags) > 0 {
			if len(c.Commands) > 0 || prefix != "" {
				b.WriteString("\n### " + name + "\n")
			}
			b.WriteString("\n")
			for _, line := range flagLines(c.Flags) {
				b.WriteString(line + "\n")
			}
		}
		for _, sub := range c.Commands {
			walk(name, sub)
		}
	}
	walk("", c)

	return b.String()
}

func flagLines(flags []cli.Flag) []string {
	lines := make([]string, 0, len(flags))
	for _, f := range flags {
		names := f.Names()
		for i, n := range names {
			if len(n) == 1 {
				names[i] = "-" + n
			} else {
				names[i] = "--" + n
			}
		}
		line := "- `" + strings.Join(names, "`, `") + "`"

		if df, ok := f.(cli.DocGenerationFlag); ok {
			if usage := df.GetUsage(); usage != "" {
				line += ": " + usage
			}
			if envs := df.GetEnvVars(); len(envs) > 0 {
				line += " (env " + strings.Join(envs, ", ") + ")"
			}
		}
		lines = append(lines, line)
	}
	sort.Strings(lines)
	return lines
}

func fatalf(f string, a ...any) {
	fmt.Fprintf(os.Stderr, f+"\n", a...)
	os.Exit(1)
}

func writeFileIfChanged(path string, new []byte, onlyIfChanged bool) error {
	if !onlyIfChanged {
		return os.WriteFile(path, new, 0o644)
	}
	old, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return os.WriteFile(path, new, 0o644)
		}
		return err
	}
	if bytes.Equal(bytes.TrimSpace(old), bytes.TrimSpace(new)) {
		return nil
	}
	return os.WriteFile(path, new, 0o644)
}

// seeAlso lists the other documented top level commands as man references.
func seeAlso(app *cli.Command, name string) string {
	var refs []string
	for _, c := range app.Commands {
		if c.Name != name && !c.Hidden {
			refs = append(refs, fmt.Sprintf("cconv-%s(1)", c.Name))
		}
	}
	if len(refs) == 0 {
		return ""
	}
	return "## See also\n\n" + strings.Join(refs, ", ") + "\n"
}

var (
	h1Re = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	h2Re = regexp.MustCompile(`(?m)^##\s+(.+)$`)
)

// sections splits md on its H2 headings. Keys are the lower cased headings,
// values the trimmed text up to the next H2.
func sections(md string) map[string]string {
	out := map[string]string{}
	locs := h2Re.FindAllStringSubmatchIndex(md, -1)
	for i, loc := range locs {
		end := len(md)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		name := strings.ToLower(strings.TrimSpace(md[loc[2]:loc[3]]))
		out[name] = strings.TrimSpace(md[loc[1]:end])
	}
	return out
}

// extractTitleAndShortDesc returns the H1 and the first paragraph of the
// "Short description" section, falling back to the title.
func extractTitleAndShortDesc(md string) (title, short string) {
	if m := h1Re.FindStringSubmatch(md); m != nil {
		title = strings.TrimSpace(m[1])
	}
	para, _, _ := strings.Cut(sections(md)["short description"], "\n\n")
	short = strings.Join(strings.Fields(para), " ")
	if short == "" && title != "" {
		short = title + "."
	}
	return title, short
}

type example struct {
	Desc string
	Cmd  string
}

// extractQuickExamples reads the first code block of the "Quick examples"
// section. A "# ..." line describes the command line that follows it.
func extractQuickExamples(md string) []example {
	_, code, ok := strings.Cut(sections(md)["quick examples"], "```")
	if !ok {
		return nil
	}
	if code, _, ok = strings.Cut(code, "```"); !ok {
		return nil
	}

	var (
		exs  []example
		desc string
	)
	for _, ln := range strings.Split(code, "\n") {
		ln = strings.TrimSpace(ln)
		switch {
		case ln == "":
		case strings.HasPrefix(ln, "#"):
			desc = strings.TrimSpace(strings.TrimLeft(ln, "#"))
		default:
			if desc == "" {
				desc = "Example"
			}
			exs = append(exs, example{Desc: desc, Cmd: strings.Join(strings.Fields(ln), " ")})
			desc = ""
		}
	}
	return exs
}

// tldrPage is what a tldr page is rendered from: the markdown doc plus what
// the command tree knows about the command.
type tldrPage struct {
	Name     string
	Title    string
	Short    string
	Usage    string
	Aliases  []string
	Examples []example
}

func buildTLDR(p tldrPage) string {
	var b strings.Builder
	b.WriteString("# cconv-" + p.Name + "\n\n")

	summary := p.Short
	for _, alt := range []string{p.Usage, p.Title, "cconv " + p.Name} {
		if summary != "" {
			break
		}
		summary = alt
	}
	b.WriteString("> " + summary + "\n")
	if len(p.Aliases) > 0 {
		b.WriteString("> Aliases: " + strings.Join(p.Aliases, ", ") + ".\n")
	}
	b.WriteString("> More information: https://github.com/staranto/cconv.\n\n")

	exs := p.Examples
	if len(exs) == 0 {
		exs = []example{{Desc: "Show help for the command", Cmd: "cconv " + p.Name + " --help"}}
	}
	for i, ex := range exs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- " + strings.TrimSpace(ex.Desc) + ":\n\n")
		b.WriteString("`" + ex.Cmd + "`\n")
	}
	return b.String()
}
