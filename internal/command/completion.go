// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/cconv/internal/meta"
)

const bashCompletionScript = `# bash completion for cconv
# Fallback if bash-completion is not installed
if ! declare -F _get_comp_words_by_ref >/dev/null 2>&1; then
  _get_comp_words_by_ref() {
    cur=${COMP_WORDS[COMP_CWORD]}
    prev=${COMP_WORDS[COMP_CWORD-1]}
  }
fi

_cconv()
{
    local cur prev cmd
    COMPREPLY=()
    _get_comp_words_by_ref -n : cur prev

    if [[ ${COMP_CWORD} -eq 1 ]]; then
        COMPREPLY=( $(compgen -W "currencies cq rate convert assets serve completion --help --version" -- "$cur") )
        return 0
    fi

    cmd=${COMP_WORDS[1]}
    local common="--color -c --filter -f --output -o --sort -s --titles -t --schema --tldr"
    local api="--api-url --api-key"
    local store="--store --sqlite-path --redis-url --s3-bucket --s3-prefix --s3-region --s3-profile --s3-endpoint"
    local asset="--app --assets-version --origin"

    case "$cmd" in
        currencies|cq|rate)
            local opts="$common $api $store"
            ;;
        convert)
            local opts="$common $api $store --from --to --amount --reverse -r"
            ;;
        assets)
            if [[ ${COMP_CWORD} -eq 2 ]]; then
                COMPREPLY=( $(compgen -W "install activate ls purge" -- "$cur") )
                return 0
            fi
            local opts="$common $asset --skip-waiting --all"
            ;;
        serve)
            local opts="$api $store $asset --addr --site --skip-waiting --tldr"
            ;;
        completion)
            local opts="bash zsh"
            COMPREPLY=( $(compgen -W "$opts" -- "$cur") )
            return 0
            ;;
        *)
            local opts="$common"
            ;;
    esac

    case "$prev" in
        --output|-o)
            COMPREPLY=( $(compgen -W "text json raw yaml" -- "$cur") )
            return 0
            ;;
        --store)
            COMPREPLY=( $(compgen -W "file sqlite redis s3 none" -- "$cur") )
            return 0
            ;;
        --site|--sqlite-path)
            COMPREPLY=( $(compgen -o dirnames -- "$cur") )
            return 0
            ;;
    esac

    COMPREPLY=( $(compgen -W "$opts" -- "$cur") )
    return 0
}

complete -F _cconv cconv
`

const zshCompletionScript = `#compdef cconv

_cconv() {
  local -a cmds
  cmds=(
    'currencies:currency list query'
    'cq:currency list query'
    'rate:exchange rate query'
    'convert:convert an amount between currencies'
    'assets:offline asset cache'
    'serve:serve the converter page, its API and its offline cache'
    'completion:generate shell completion script'
  )

  local -a common
  common=(
  '(-c --color)'{-c,--color}'[enable colored text]'
  '(-f --filter)'{-f,--filter}'[filters to apply]:filters'
  '(-o --output)'{-o,--output}'[output format]:format:(text json raw yaml)'
  '(-s --sort)'{-s,--sort}'[sort attributes]:attrs'
  '(-t --titles)'{-t,--titles}'[show titles]'
  '--schema[dump schema]'
  '--tldr[show tldr page]'
  )

  local -a api
  api=(
  '--api-url[currency API base url]:url'
  '--api-key[currency API key]:key'
  '--store[offline store backend]:backend:(file sqlite redis s3 none)'
  '--sqlite-path[sqlite database file]:file:_files'
  '--redis-url[redis url]:url'
  '--s3-bucket[s3 bucket]:bucket'
  '--s3-prefix[s3 key prefix]:prefix'
  '--s3-region[aws region]:region'
  '--s3-profile[aws profile]:profile'
  '--s3-endpoint[custom s3 endpoint]:url'
  )

  local -a asset
  asset=(
  '--app[application name]:app'
  '--assets-version[asset cache generation]:version'
  '--origin[origin the page is served from]:url'
  )

  if (( CURRENT == 2 )); then
    _describe -t commands 'cconv commands' cmds
    return
  fi

  local curcontext="$curcontext" state line
  case $words[2] in
    currencies|cq)
      _arguments -C $common $api
      ;;
    rate)
      _arguments -C $common $api '1:from:' '2:to:'
      ;;
    convert)
      _arguments -C \
        $common \
        $api \
        '--from[currency to convert from]:code' \
        '--to[currency to convert to]:code' \
        '--amount[amount to convert]:amount' \
        '(-r --reverse)'{-r,--reverse}'[swap from and to]' \
        '*::args:'
      ;;
    assets)
      if (( CURRENT == 3 )); then
        _values 'assets command' install activate ls purge
        return
      fi
      _arguments -C $common $asset '--skip-waiting[take control now]' '--all[every app]'
      ;;
    serve)
      _arguments -C \
        $api \
        $asset \
        '--addr[address to listen on]:addr' \
        '--site[site directory]:dir:_directories' \
        '--skip-waiting[take control now]'
      ;;
    completion)
      _arguments '1: :((bash zsh))'
      ;;
    *)
      _arguments -C $common
      ;;
  esac
}

# If this file is sourced directly (not autoloaded via fpath), ensure compsys is initialized and register the completion
if ! typeset -f compdef >/dev/null 2>&1; then
  autoload -Uz compinit && compinit -i
fi
compdef _cconv cconv
`

func CompletionCommandAction(ctx context.Context, cmd *cli.Command) error {
	w := cmd.Root().Writer

	shell := ""
	if args := cmd.Args().Slice(); len(args) > 0 {
		shell = args[0]
	}
	switch shell {
	case "bash":
		fmt.Fprint(w, bashCompletionScript)
	case "zsh":
		fmt.Fprint(w, zshCompletionScript)
	default:
		// Try to detect from SHELL or print help
		sh := os.Getenv("SHELL")
		if strings.HasSuffix(sh, "zsh") {
			fmt.Fprint(w, zshCompletionScript)
		} else if strings.HasSuffix(sh, "bash") {
			fmt.Fprint(w, bashCompletionScript)
		} else {
			fmt.Fprintln(cmd.Root().ErrWriter, "usage: cconv completion [bash|zsh]")
			return nil
		}
	}
	return nil
}

func CompletionCommandBuilder(meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "completion",
		Usage:     "generate shell completion script",
		UsageText: "cconv completion [bash|zsh]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Action: CompletionCommandAction,
	}
}
