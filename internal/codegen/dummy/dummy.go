// Package dummy implements the trivial codegen.Backend named "dummy" in
// spec.md §6's backend table: it performs no real lowering, only a
// diagnostic dump of the scheduled module, useful for exercising the CLI
// and the analysis package end to end without a real target.
package dummy

import (
	"fmt"
	"os"

	"github.com/madmann91/fir/internal/analysis"
	"github.com/madmann91/fir/internal/codegen"
	"github.com/madmann91/fir/internal/ir"
)

type backend struct {
	destroyed bool
}

// New constructs the dummy backend.
func New() codegen.Backend { return &backend{} }

// Run schedules every function in mod and writes a block-by-block listing
// of scheduled node ids to outputPath (per spec.md §6's "run(...) -> bool"
// contract). It returns false only when outputPath cannot be created, and
// true otherwise.
func (b *backend) Run(mod *ir.Module, outputPath string) bool {
	f, err := os.Create(outputPath)
	if err != nil {
		return false
	}
	defer f.Close()

	fmt.Fprintln(f, "; dummy backend output")
	for _, fn := range mod.Funcs() {
		if fn.Body() == nil {
			continue
		}
		scope := analysis.BuildScope(fn)
		cfg := analysis.BuildCFG(scope)
		dom := analysis.BuildDomTree(cfg)
		loop := analysis.BuildLoopForest(cfg)
		sched := analysis.BuildSchedule(cfg, dom, loop)

		fmt.Fprintf(f, "func %%%d:\n", fn.ID())
		for _, blk := range cfg.Blocks {
			fmt.Fprintf(f, "  block %s (loop depth %d):\n", blockLabel(blk), loop.Depth(blk))
			for _, n := range sched.BlockContents(blk) {
				fmt.Fprintf(f, "    %%%d = %s\n", n.ID(), n.Tag())
			}
		}
	}
	return true
}

func blockLabel(b *analysis.Block) string {
	switch {
	case b.IsSource:
		return "source"
	case b.IsSink:
		return "sink"
	default:
		return fmt.Sprintf("%%%d", b.Fn.ID())
	}
}

// Destroy marks the backend as released; the dummy backend holds no
// resources of its own to free.
func (b *backend) Destroy() {
	b.destroyed = true
}
