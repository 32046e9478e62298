// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/datawire/dlib/dlog"
	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"git.lukeshu.com/go/cbs/lib/cbs"
	"git.lukeshu.com/go/cbs/lib/containers"
	"git.lukeshu.com/go/cbs/lib/textui"
)

// stressConfig is the TOML-configurable shape of a workload.  Units
// are multiples of the configured alignment.
type stressConfig struct {
	Seed       int64 `toml:"seed"`
	Ops        int   `toml:"ops"`
	Units      int64 `toml:"units"`       // extent of the managed space
	MaxRange   int64 `toml:"max-range"`   // largest per-op range
	CheckEvery int   `toml:"check-every"` // full model comparison interval
}

func defaultStressConfig() stressConfig {
	return stressConfig{
		Seed:       1,
		Ops:        100000,
		Units:      4096,
		MaxRange:   64,
		CheckEvery: 1024,
	}
}

func init() {
	cmd := subcommand{
		Command: cobra.Command{
			Use:   "stress [CONFIG.toml]",
			Short: "Run a randomized workload, checking the structure against a naive model",
			Args:  cobra.MaximumNArgs(1),
		},
		RunE: func(structure *cbs.CBS, cmd *cobra.Command, args []string) error {
			cfg := defaultStressConfig()
			if len(args) > 0 {
				if _, err := toml.DecodeFile(args[0], &cfg); err != nil {
					return err
				}
			}
			return stress(cmd.Context(), structure, cfg)
		},
	}
	subcommands = append(subcommands, cmd)
}

// stressModel is the naive mirror of the structure: one bit per
// alignment unit.
type stressModel struct {
	align cbs.Align
	held  containers.Set[int64]
}

func (m *stressModel) allHeld(ubase, ulimit int64) bool {
	for u := ubase; u < ulimit; u++ {
		if !m.held.Has(u) {
			return false
		}
	}
	return true
}

func (m *stressModel) allFree(ubase, ulimit int64) bool {
	for u := ubase; u < ulimit; u++ {
		if m.held.Has(u) {
			return false
		}
	}
	return true
}

func (m *stressModel) set(ubase, ulimit int64, held bool) {
	for u := ubase; u < ulimit; u++ {
		if held {
			m.held.Insert(u)
		} else {
			m.held.Delete(u)
		}
	}
}

type unitRange struct {
	Base, Limit int64
}

// runs flattens the model into the sorted, coalesced block list that
// the structure is expected to hold.
func (m *stressModel) runs(units int64) []unitRange {
	var ret []unitRange
	for u := int64(0); u < units; u++ {
		if !m.held.Has(u) {
			continue
		}
		if len(ret) > 0 && ret[len(ret)-1].Limit == u {
			ret[len(ret)-1].Limit = u + 1
		} else {
			ret = append(ret, unitRange{Base: u, Limit: u + 1})
		}
	}
	return ret
}

func stress(ctx context.Context, structure *cbs.CBS, cfg stressConfig) error {
	if cfg.Ops < 0 || cfg.Units < 1 || cfg.MaxRange < 1 {
		return fmt.Errorf("invalid workload config: %+v", cfg)
	}
	align := cbs.Align(globals.alignment)
	rng := rand.New(rand.NewSource(cfg.Seed))

	model := &stressModel{
		align: align,
		held:  make(containers.Set[int64]),
	}

	dlog.Infof(ctx, "workload: %d ops over %v of space, seed %d",
		cfg.Ops, textui.IEC(cfg.Units*int64(align), "B"), cfg.Seed)

	progress := textui.NewProgress[textui.Portion[int]](ctx, dlog.LogLevelInfo, textui.Tunable(1*time.Second))
	defer progress.Done()

	for i := 0; i < cfg.Ops; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		progress.Set(textui.Portion[int]{N: i, D: cfg.Ops})

		ubase := rng.Int63n(cfg.Units)
		ulen := 1 + rng.Int63n(cfg.MaxRange)
		if ubase+ulen > cfg.Units {
			ulen = cfg.Units - ubase
		}
		ulimit := ubase + ulen
		rangeBase := cbs.Addr(ubase * int64(align))
		rangeLimit := cbs.Addr(ulimit * int64(align))

		switch rng.Intn(4) {
		case 0, 1: // insert
			err := structure.Insert(rangeBase, rangeLimit)
			switch {
			case model.allFree(ubase, ulimit):
				if err != nil {
					return fmt.Errorf("op %d: insert [%v,%v) of free space failed: %w", i, rangeBase, rangeLimit, err)
				}
				model.set(ubase, ulimit, true)
			default:
				if err == nil {
					return fmt.Errorf("op %d: insert [%v,%v) overlapping held space succeeded", i, rangeBase, rangeLimit)
				}
			}
		case 2: // delete
			err := structure.Delete(rangeBase, rangeLimit)
			switch {
			case model.allHeld(ubase, ulimit):
				if err != nil {
					return fmt.Errorf("op %d: delete [%v,%v) of held space failed: %w", i, rangeBase, rangeLimit, err)
				}
				model.set(ubase, ulimit, false)
			default:
				if err == nil {
					return fmt.Errorf("op %d: delete [%v,%v) of non-held space succeeded", i, rangeBase, rangeLimit)
				}
			}
		case 3: // find
			if globals.noFastFind {
				continue
			}
			size := cbs.Size(ulen * int64(align))
			var foundBase, foundLimit cbs.Addr
			var ok bool
			if rng.Intn(2) == 0 {
				foundBase, foundLimit, ok = structure.FindFirst(size, cbs.FindDeleteEntire)
			} else {
				foundBase, foundLimit, ok = structure.FindLast(size, cbs.FindDeleteEntire)
			}
			if !ok {
				continue
			}
			fb, fl := int64(foundBase)/int64(align), int64(foundLimit)/int64(align)
			if foundLimit.Sub(foundBase) < size {
				return fmt.Errorf("op %d: find %d returned too-small [%v,%v)", i, size, foundBase, foundLimit)
			}
			if !model.allHeld(fb, fl) {
				return fmt.Errorf("op %d: find %d returned non-held [%v,%v)", i, size, foundBase, foundLimit)
			}
			model.set(fb, fl, false)
		}

		if cfg.CheckEvery > 0 && (i+1)%cfg.CheckEvery == 0 {
			if err := compare(ctx, structure, model, cfg.Units); err != nil {
				return fmt.Errorf("op %d: %w", i, err)
			}
		}
	}
	progress.Set(textui.Portion[int]{N: cfg.Ops, D: cfg.Ops})

	return compare(ctx, structure, model, cfg.Units)
}

func compare(ctx context.Context, structure *cbs.CBS, model *stressModel, units int64) error {
	if err := structure.Check(); err != nil {
		return err
	}

	want := model.runs(units)
	var got []unitRange
	structure.Iterate(func(_ *cbs.CBS, blk *cbs.Block) bool {
		got = append(got, unitRange{
			Base:  int64(blk.Base()) / int64(model.align),
			Limit: int64(blk.Limit()) / int64(model.align),
		})
		return true
	})

	if len(got) != len(want) {
		dlog.Errorf(ctx, "model:\n%s\nstructure:\n%s", spew.Sdump(want), spew.Sdump(got))
		return fmt.Errorf("structure has %d blocks, model has %d", len(got), len(want))
	}
	for j := range want {
		if got[j] != want[j] {
			dlog.Errorf(ctx, "model:\n%s\nstructure:\n%s", spew.Sdump(want), spew.Sdump(got))
			return fmt.Errorf("block %d is %v, model says %v", j, got[j], want[j])
		}
	}
	return nil
}
