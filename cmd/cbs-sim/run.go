// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/datawire/dlib/dlog"
	"github.com/spf13/cobra"

	"git.lukeshu.com/go/cbs/lib/cbs"
	"git.lukeshu.com/go/cbs/lib/jsonutil"
)

func init() {
	var jsonFlag bool
	cmd := subcommand{
		Command: cobra.Command{
			Use:   "run SCRIPT",
			Short: "Run a line-oriented script of CBS operations ('-' for stdin)",
			Args:  cobra.ExactArgs(1),
		},
		RunE: func(structure *cbs.CBS, cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var in io.Reader
			if args[0] == "-" {
				in = os.Stdin
			} else {
				fh, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer fh.Close()
				in = fh
			}

			ctx = dlog.WithField(ctx, "cbs-sim.script", args[0])
			lines := bufio.NewScanner(in)
			for lineno := 1; lines.Scan(); lineno++ {
				if err := runLine(ctx, structure, lines.Text()); err != nil {
					return fmt.Errorf("%s:%d: %w", args[0], lineno, err)
				}
			}
			if err := lines.Err(); err != nil {
				return err
			}

			if jsonFlag {
				return dumpJSON(os.Stdout, structure)
			}
			return nil
		},
	}
	cmd.Command.Flags().BoolVar(&jsonFlag, "json", false, "dump the final block list to stdout as JSON")
	subcommands = append(subcommands, cmd)
}

func runLine(ctx context.Context, structure *cbs.CBS, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return nil
	}
	op, args := fields[0], fields[1:]
	ctx = dlog.WithField(ctx, "cbs-sim.op", op)

	argN := func(i int) (int64, error) {
		if i >= len(args) {
			return 0, fmt.Errorf("%s: missing argument %d", op, i+1)
		}
		return strconv.ParseInt(args[i], 0, 64)
	}
	argPolicy := func(i int) (cbs.FindDelete, error) {
		if i >= len(args) {
			return cbs.FindDeleteNone, nil
		}
		switch args[i] {
		case "none":
			return cbs.FindDeleteNone, nil
		case "low":
			return cbs.FindDeleteLow, nil
		case "high":
			return cbs.FindDeleteHigh, nil
		case "entire":
			return cbs.FindDeleteEntire, nil
		default:
			return 0, fmt.Errorf("%s: invalid find-delete policy %q", op, args[i])
		}
	}

	switch op {
	case "insert":
		base, err := argN(0)
		if err != nil {
			return err
		}
		limit, err := argN(1)
		if err != nil {
			return err
		}
		newBase, newLimit, err := structure.InsertReturningRange(cbs.Addr(base), cbs.Addr(limit))
		if err != nil {
			return err
		}
		dlog.Infof(ctx, "[%v,%v) -> coalesced [%v,%v)", cbs.Addr(base), cbs.Addr(limit), newBase, newLimit)
	case "delete":
		base, err := argN(0)
		if err != nil {
			return err
		}
		limit, err := argN(1)
		if err != nil {
			return err
		}
		if err := structure.Delete(cbs.Addr(base), cbs.Addr(limit)); err != nil {
			return err
		}
		dlog.Infof(ctx, "[%v,%v) deleted", cbs.Addr(base), cbs.Addr(limit))
	case "findfirst", "findlast":
		size, err := argN(0)
		if err != nil {
			return err
		}
		policy, err := argPolicy(1)
		if err != nil {
			return err
		}
		find := structure.FindFirst
		if op == "findlast" {
			find = structure.FindLast
		}
		base, limit, ok := find(cbs.Size(size), policy)
		if !ok {
			dlog.Infof(ctx, "size %v: not found", cbs.Size(size))
			break
		}
		dlog.Infof(ctx, "size %v, %v: [%v,%v)", cbs.Size(size), policy, base, limit)
	case "findlargest":
		policy, err := argPolicy(0)
		if err != nil {
			return err
		}
		base, limit, ok := structure.FindLargest(policy)
		if !ok {
			dlog.Infof(ctx, "empty")
			break
		}
		dlog.Infof(ctx, "%v: [%v,%v)", policy, base, limit)
	case "setmin":
		minSize, err := argN(0)
		if err != nil {
			return err
		}
		structure.SetMinSize(cbs.Size(minSize))
		dlog.Infof(ctx, "minSize = %v", cbs.Size(minSize))
	case "iterate":
		structure.Iterate(func(_ *cbs.CBS, blk *cbs.Block) bool {
			dlog.Infof(ctx, "%v", blk)
			return true
		})
	case "check":
		if err := structure.Check(); err != nil {
			return err
		}
		dlog.Infof(ctx, "ok")
	case "describe":
		if err := structure.Describe(os.Stdout); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown operation %q", op)
	}
	return nil
}

type blockJSON struct {
	Base  int64
	Limit int64
	Size  int64
}

func dumpJSON(w io.Writer, structure *cbs.CBS) error {
	var blocks []blockJSON
	structure.Iterate(func(_ *cbs.CBS, blk *cbs.Block) bool {
		blocks = append(blocks, blockJSON{
			Base:  int64(blk.Base()),
			Limit: int64(blk.Limit()),
			Size:  int64(blk.Size()),
		})
		return true
	})
	return jsonutil.Encode(w, blocks)
}
