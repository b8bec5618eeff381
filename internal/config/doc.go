// Package config loads the settings and environment the dispatch layer needs.
//
// # Settings Files
//
// Settings are read from two places, later files overriding earlier ones:
//
//  1. Global settings in $XDG_CONFIG_HOME/git (or the single file named by
//     GIT_CONFIG_GLOBAL)
//  2. Repository settings inside the control directory
//
// In each directory config.json, config.jsonc, config.yaml and config.yml are
// merged in that order. JSON files may carry comments (tidwall/jsonc) and any
// file may use {env:VAR} placeholders.
//
// Only a handful of keys are understood:
//
//	{
//	  "core": {
//	    "pager": "less -S",
//	    "bare": false,
//	    "worktree": "../checkout"
//	  },
//	  "pager": {
//	    "log": true,
//	    "config": false,
//	    "diff": "delta"
//	  }
//	}
//
// A pager.<cmd> value is a boolean, or a program name that both enables paging
// and selects the program for that command.
//
// # Environment
//
// Env collects the GIT_* variables consulted during setup (GIT_DIR,
// GIT_WORK_TREE, GIT_CEILING_DIRECTORIES, GIT_PAGER, PAGER, ...). It is parsed
// with caarlos0/env so tests can feed their own variables via LoadEnvFrom.
package config
