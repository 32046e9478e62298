// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Command cbs-sim drives a coalescing block structure from the
// command line, for diagnostics and for soak-testing the library.
package main

import (
	"context"
	"os"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"
	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"git.lukeshu.com/go/cbs/lib/cbs"
	"git.lukeshu.com/go/cbs/lib/textui"
)

type subcommand struct {
	cobra.Command
	RunE func(*cbs.CBS, *cobra.Command, []string) error
}

var subcommands []subcommand

type globalFlags struct {
	logLevel textui.LogLevelFlag
	logJSON  bool

	minSize    int64
	alignment  int64
	noFastFind bool
	maxRecords int
}

var globals globalFlags

func main() {
	globals.logLevel.Level = dlog.LogLevelInfo

	argparser := &cobra.Command{
		Use:   "cbs-sim {[flags]|SUBCOMMAND}",
		Short: "Exercise a coalescing block structure",

		Args: cliutil.WrapPositionalArgs(cliutil.OnlySubcommands),
		RunE: cliutil.RunSubcommands,

		SilenceErrors: true, // main() will handle this after .ExecuteContext() returns
		SilenceUsage:  true, // our FlagErrorFunc will handle it

		CompletionOptions: cobra.CompletionOptions{ //nolint:exhaustivestruct
			DisableDefaultCmd: true,
		},
	}
	argparser.SetFlagErrorFunc(cliutil.FlagErrorFunc)
	argparser.SetHelpTemplate(cliutil.HelpTemplate)
	argparser.PersistentFlags().Var(&globals.logLevel, "verbosity", "set the verbosity")
	argparser.PersistentFlags().BoolVar(&globals.logJSON, "log-json", false, "emit logs as logrus JSON instead of text")
	argparser.PersistentFlags().Int64Var(&globals.minSize, "min-size", 8, "threshold at or above which blocks are \"interesting\"")
	argparser.PersistentFlags().Int64Var(&globals.alignment, "align", 1, "power-of-two alignment for all range endpoints")
	argparser.PersistentFlags().BoolVar(&globals.noFastFind, "no-fast-find", false, "disable the maxSize augmentation (and with it the find subcommands)")
	argparser.PersistentFlags().IntVar(&globals.maxRecords, "max-records", 0, "if >0, cap the number of live block records (forces out-of-memory)")

	for i := range subcommands {
		cmd := subcommands[i].Command
		runE := subcommands[i].RunE
		cmd.RunE = func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if globals.logJSON {
				logger := logrus.New()
				logger.SetFormatter(&logrus.JSONFormatter{})
				if lvl, err := logrus.ParseLevel(globals.logLevel.String()); err == nil {
					logger.SetLevel(lvl)
				}
				ctx = dlog.WithLogger(ctx, dlog.WrapLogrus(logger))
			} else {
				ctx = dlog.WithLogger(ctx, textui.NewLogger(os.Stderr, globals.logLevel.Level))
			}

			grp := dgroup.NewGroup(ctx, dgroup.GroupConfig{
				EnableSignalHandling: true,
			})
			grp.Go("main", func(ctx context.Context) error {
				var arena cbs.Arena = cbs.HeapArena{}
				if globals.maxRecords > 0 {
					arena = &cbs.LimitedArena{Limit: globals.maxRecords}
				}

				var structure cbs.CBS
				err := structure.Init(arena, "cbs-sim",
					loggingCallbacks(ctx),
					cbs.Size(globals.minSize),
					cbs.Align(globals.alignment),
					!globals.noFastFind)
				if err != nil {
					return err
				}
				defer structure.Finish()

				cmd.SetContext(ctx)
				return runE(&structure, cmd, args)
			})
			return grp.Wait()
		}
		argparser.AddCommand(&cmd)
	}

	if err := argparser.ExecuteContext(context.Background()); err != nil {
		textui.Fprintf(os.Stderr, "%v: error: %v\n", argparser.CommandPath(), err)
		os.Exit(1)
	}
}

// loggingCallbacks reports every threshold crossing to the log, so
// that a script run shows the whole client-notification dialogue.
func loggingCallbacks(ctx context.Context) cbs.Callbacks {
	log := func(event string) cbs.ChangeFn {
		return func(_ *cbs.CBS, blk *cbs.Block, oldSize, newSize cbs.Size) {
			dlog.Debugf(dlog.WithField(ctx, "cbs-sim.op", "callback"),
				"%s %v: %d -> %d", event, blk, oldSize, newSize)
		}
	}
	return cbs.Callbacks{
		OnNew:    log("new"),
		OnDelete: log("delete"),
		OnGrow:   log("grow"),
		OnShrink: log("shrink"),
	}
}
