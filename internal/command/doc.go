// Package command defines the builtin command table the dispatcher runs from.
//
// # Entries
//
// Each Entry pairs a name with a Handler and the Capabilities that tell the
// dispatcher how to prepare the process before the handler runs:
//
//   - RequiresControlDir: locate the control directory or fail the command
//   - RequiresControlDirGently: locate it if possible, run regardless
//   - RequiresWorkTree: with either mode above, fail when there is no work tree
//   - UsesPager: page output by default
//   - SupportsSuperPrefix: accept a super-prefix from a parent invocation
//   - DelaysPagerConfig: leave the pager decision to the handler
//
// # Registry
//
// A Registry is built once at start-up and never changes. NewRegistry checks
// the whole table and reports every problem at once:
//
//	reg, err := command.NewRegistry(
//		command.Entry{Name: "status", Handler: status, Capabilities: command.Capabilities{
//			RequiresControlDir: true,
//			RequiresWorkTree:   true,
//		}},
//	)
//
// Lookup is an exact match. Suggestions for misspelled names belong to the
// front end.
package command
