// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	cgerrors "github.com/kraklabs/codegraph/pkg/errors"
)

// bashCompletionTemplate is the bash completion script for codegraph.
const bashCompletionTemplate = `#!/bin/bash

# Bash completion script for codegraph
# Installation:
#   source <(codegraph completion bash)
#   Or add to ~/.bashrc:
#   echo 'source <(codegraph completion bash)' >> ~/.bashrc

_codegraph_completion() {
    local cur prev commands
    commands="init index status ask serve install-hook completion"

    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"

    if [[ ${cur} == -* ]] ; then
        COMPREPLY=( $(compgen -W "--version --config --no-color" -- ${cur}) )
        return 0
    fi

    if [ $COMP_CWORD -eq 1 ]; then
        COMPREPLY=( $(compgen -W "${commands}" -- ${cur}) )
        return 0
    fi

    local cmd="${COMP_WORDS[1]}"
    case "${cmd}" in
        index)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--quiet --incremental" -- ${cur}) )
            fi
            ;;
        status)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--json" -- ${cur}) )
            fi
            ;;
        ask)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--type" -- ${cur}) )
            fi
            ;;
        serve)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--mcp --http" -- ${cur}) )
            fi
            ;;
        init)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--force -y --project-id --embedding-provider --llm-url --llm-model --no-hook --hook" -- ${cur}) )
            fi
            ;;
        install-hook)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--force --remove" -- ${cur}) )
            fi
            ;;
        completion)
            if [ $COMP_CWORD -eq 2 ]; then
                COMPREPLY=( $(compgen -W "bash zsh fish" -- ${cur}) )
            fi
            ;;
    esac
}

complete -F _codegraph_completion codegraph
`

// zshCompletionTemplate is the zsh completion script for codegraph.
const zshCompletionTemplate = `#compdef codegraph

# Zsh completion script for codegraph
# Installation:
#   1. Ensure compinit is loaded (add to ~/.zshrc if not present):
#      autoload -U compinit; compinit
#   2. Save this script to a directory in your fpath:
#      codegraph completion zsh > "${fpath[1]}/_codegraph"
#   3. Reload completions:
#      rm -f ~/.zcompdump; compinit

_codegraph() {
    local -a commands
    commands=(
        'init:Create .codegraph/project.yaml configuration'
        'index:Index the current repository'
        'status:Show project status'
        'ask:Run the Agent Orchestrator over a query'
        'serve:Start the RPC server (stdio or HTTP)'
        'install-hook:Install git post-commit hook'
        'completion:Generate shell completion script'
    )

    _arguments -C \
        '(- *)--version[Show version and exit]' \
        '--config[Path to .codegraph/project.yaml]:config file:_files -g "*.yaml"' \
        '--no-color[Disable colored output]' \
        '1: :->command' \
        '*:: :->args'

    case $state in
        command)
            _describe 'command' commands
            ;;
        args)
            case $words[1] in
                index)
                    _arguments \
                        '--quiet[Suppress progress output]' \
                        '--incremental[Incremental re-index]'
                    ;;
                status)
                    _arguments '--json[Output as JSON]'
                    ;;
                ask)
                    _arguments '--type[Analysis type]:type:'
                    ;;
                serve)
                    _arguments \
                        '--mcp[Serve JSON-RPC over stdio]' \
                        '--http[Serve HTTP POST /mcp]:address:'
                    ;;
                install-hook)
                    _arguments \
                        '--force[Overwrite existing hook]' \
                        '--remove[Remove the hook]'
                    ;;
                completion)
                    _arguments '1:shell:(bash zsh fish)'
                    ;;
            esac
            ;;
    esac
}

_codegraph
`

// fishCompletionTemplate is the fish completion script for codegraph.
const fishCompletionTemplate = `# Fish completion script for codegraph
# Installation:
#   1. Load completions for current session:
#      codegraph completion fish | source
#   2. Install permanently:
#      codegraph completion fish > ~/.config/fish/completions/codegraph.fish

complete -c codegraph -f -n "__fish_use_subcommand" -a "init" -d "Create .codegraph/project.yaml configuration"
complete -c codegraph -f -n "__fish_use_subcommand" -a "index" -d "Index the current repository"
complete -c codegraph -f -n "__fish_use_subcommand" -a "status" -d "Show project status"
complete -c codegraph -f -n "__fish_use_subcommand" -a "ask" -d "Run the Agent Orchestrator over a query"
complete -c codegraph -f -n "__fish_use_subcommand" -a "serve" -d "Start the RPC server (stdio or HTTP)"
complete -c codegraph -f -n "__fish_use_subcommand" -a "install-hook" -d "Install git post-commit hook"
complete -c codegraph -f -n "__fish_use_subcommand" -a "completion" -d "Generate shell completion script"

complete -c codegraph -l version -d "Show version and exit"
complete -c codegraph -l config -d "Path to .codegraph/project.yaml" -r
complete -c codegraph -l no-color -d "Disable colored output"

complete -c codegraph -n "__fish_seen_subcommand_from index" -l quiet -d "Suppress progress output"
complete -c codegraph -n "__fish_seen_subcommand_from index" -l incremental -d "Incremental re-index"

complete -c codegraph -n "__fish_seen_subcommand_from status" -l json -d "Output as JSON"

complete -c codegraph -n "__fish_seen_subcommand_from ask" -l type -d "Analysis type" -r

complete -c codegraph -n "__fish_seen_subcommand_from serve" -l mcp -d "Serve JSON-RPC over stdio"
complete -c codegraph -n "__fish_seen_subcommand_from serve" -l http -d "Serve HTTP POST /mcp" -r

complete -c codegraph -n "__fish_seen_subcommand_from install-hook" -l force -d "Overwrite existing hook"
complete -c codegraph -n "__fish_seen_subcommand_from install-hook" -l remove -d "Remove the hook"

complete -c codegraph -n "__fish_seen_subcommand_from completion" -f -a "bash" -d "Generate bash completion script"
complete -c codegraph -n "__fish_seen_subcommand_from completion" -f -a "zsh" -d "Generate zsh completion script"
complete -c codegraph -n "__fish_seen_subcommand_from completion" -f -a "fish" -d "Generate fish completion script"
`

// runCompletion executes 'codegraph completion <shell>', emitting a
// shell-specific completion script to stdout.
func runCompletion(args []string) {
	fs := flag.NewFlagSet("completion", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: codegraph completion <shell>

Generate a shell completion script for bash, zsh, or fish.

Examples:
  source <(codegraph completion bash)
  codegraph completion zsh > "${fpath[1]}/_codegraph"
  codegraph completion fish | source
`)
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}

	switch fs.Arg(0) {
	case "bash":
		fmt.Print(bashCompletionTemplate)
	case "zsh":
		fmt.Print(zshCompletionTemplate)
	case "fish":
		fmt.Print(fishCompletionTemplate)
	default:
		cgerrors.FatalError(cgerrors.NewInputError(
			"Unknown shell: "+fs.Arg(0),
			"Supported shells are bash, zsh, and fish",
			"Run 'codegraph completion bash|zsh|fish'",
		), false)
	}
}
