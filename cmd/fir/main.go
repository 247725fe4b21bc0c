// Command fir is the reference CLI driver for the sea-of-nodes IR core,
// implementing exactly the flag table of spec.md §6 plus the optional
// --watch/--sign additions of SPEC_FULL.md §4.13/§4.14. Grounded on the
// teacher's flat cmd/sentra/main.go dispatch style: no subcommand
// framework, a loop over os.Args classifying each argument as a flag or a
// positional source file.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/madmann91/fir/internal/analysis"
	"github.com/madmann91/fir/internal/buildutil"
	"github.com/madmann91/fir/internal/codegen"
	"github.com/madmann91/fir/internal/codegen/dummy"
	"github.com/madmann91/fir/internal/diag"
	"github.com/madmann91/fir/internal/inspect"
	"github.com/madmann91/fir/internal/ir"
)

const version = "0.1.0"

var buildDate = time.Now().Format("2006-01-02")

type options struct {
	files      []string
	verbose    bool
	noColor    bool
	noCleanup  bool
	codegen    string
	watchAddr  string
	watch      bool
	signKey    string
	sign       bool
}

func main() {
	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "fir: %v\n", err)
		os.Exit(1)
	}
	if opts == nil {
		// -h/--help or --version already printed and asked for a clean exit.
		os.Exit(0)
	}
	if len(opts.files) == 0 {
		fmt.Fprintln(os.Stderr, "fir: no input files")
		os.Exit(1)
	}

	registry := codegen.NewRegistry()
	registry.Register("dummy", dummy.New)

	var watcher *inspect.Server
	if opts.watch {
		watcher = inspect.NewServer()
		mux := http.NewServeMux()
		mux.Handle("/", watcher)
		go func() {
			if err := http.ListenAndServe(opts.watchAddr, mux); err != nil {
				fmt.Fprintf(os.Stderr, "fir: watch server: %v\n", err)
			}
		}()
		fmt.Fprintf(os.Stderr, "fir: watching on %s\n", opts.watchAddr)
	}

	results := make([]*buildResult, len(opts.files))
	group, ctx := errgroup.WithContext(context.Background())
	for i, file := range opts.files {
		i, file := i, file
		group.Go(func() error {
			results[i] = buildFile(ctx, file, opts, registry, watcher)
			return nil
		})
	}
	_ = group.Wait()

	ok := true
	for _, r := range results {
		r.print(opts)
		if !r.success {
			ok = false
		}
	}
	if !ok {
		os.Exit(1)
	}
}

// parseArgs splits args into recognized flags and positional source files.
// It returns a nil *options (with a nil error) after handling -h/--help or
// --version, signaling the caller to exit 0 without further work.
func parseArgs(args []string) (*options, error) {
	opts := &options{codegen: "dummy", watchAddr: ":7070"}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-h", "--help":
			printUsage()
			return nil, nil
		case "--version":
			printVersion()
			return nil, nil
		case "-v", "--verbose":
			opts.verbose = true
		case "--no-color":
			opts.noColor = true
		case "--no-cleanup":
			opts.noCleanup = true
		case "--codegen":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--codegen requires a backend name")
			}
			i++
			opts.codegen = args[i]
		case "--watch":
			opts.watch = true
			if i+1 < len(args) && len(args[i+1]) > 0 && args[i+1][0] != '-' {
				i++
				opts.watchAddr = args[i]
			}
		case "--sign":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--sign requires a private key path")
			}
			i++
			opts.sign = true
			opts.signKey = args[i]
		default:
			if len(arg) > 0 && arg[0] == '-' {
				return nil, fmt.Errorf("unrecognized flag %q", arg)
			}
			opts.files = append(opts.files, arg)
		}
	}
	return opts, nil
}

func printUsage() {
	fmt.Println("fir - sea-of-nodes intermediate representation core")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  fir [flags] <file.fir>...")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -h, --help           print usage and exit 0")
	fmt.Println("  --version            print version and timestamp, exit 0")
	fmt.Println("  -v, --verbose        verbose printing")
	fmt.Println("  --no-color           disable ANSI styling")
	fmt.Println("  --no-cleanup         skip dead-node GC before printing")
	fmt.Println("  --codegen <name>     select backend (dummy, ...)")
	fmt.Println("  --watch [addr]       stream module snapshots over websocket (default :7070)")
	fmt.Println("  --sign <keypath>     sign codegen output with the Ed25519 key at keypath")
}

func printVersion() {
	fmt.Printf("fir version %s (built %s)\n", version, buildDate)
}

// buildResult carries one input file's outcome plus enough detail to print
// a verbose summary or render its diagnostics, gathered independently of
// every other file's result per spec.md §5.
type buildResult struct {
	file     string
	success  bool
	bag      *diag.Bag
	elapsed  time.Duration
	nodes    int
	funcs    int
	blocks   int
	message  string
}

func buildFile(ctx context.Context, file string, opts *options, registry *codegen.Registry, watcher *inspect.Server) *buildResult {
	start := time.Now()
	res := &buildResult{file: file}

	src, err := os.ReadFile(file)
	if err != nil {
		res.message = err.Error()
		return res
	}

	mod, bag := ir.Parse(file, file, string(src), 64)
	res.bag = bag
	if !bag.Empty() {
		return res
	}
	defer mod.Destroy()

	if !opts.noCleanup {
		mod.Cleanup()
	}

	res.funcs = len(mod.Funcs())
	res.nodes = countNodes(mod)
	for _, fn := range mod.Funcs() {
		if fn.Body() == nil {
			continue
		}
		scope := analysis.BuildScope(fn)
		cfg := analysis.BuildCFG(scope)
		res.blocks += len(cfg.Blocks)
	}

	backend, ok := registry.New(opts.codegen)
	if !ok {
		res.message = fmt.Sprintf("unknown codegen backend %q", opts.codegen)
		return res
	}
	defer backend.Destroy()

	outputPath := file + ".o"
	if !backend.Run(mod, outputPath) {
		res.message = fmt.Sprintf("codegen backend %q failed", opts.codegen)
		return res
	}

	if opts.sign {
		art, err := buildutil.ReadArtifact(outputPath)
		if err != nil {
			// Not every backend writes a buildutil.Artifact envelope; the
			// dummy backend writes plain text, so signing its raw bytes
			// directly is the fallback.
			raw, readErr := os.ReadFile(outputPath)
			if readErr != nil {
				res.message = fmt.Sprintf("sign: %v", readErr)
				return res
			}
			art = &buildutil.Artifact{BuildID: [16]byte(mod.BuildID()), Payload: raw}
		}
		sig, err := buildutil.Sign(art, opts.signKey)
		if err != nil {
			res.message = fmt.Sprintf("sign: %v", err)
			return res
		}
		if err := buildutil.WriteSignature(outputPath+".sig", sig); err != nil {
			res.message = fmt.Sprintf("sign: write signature: %v", err)
			return res
		}
	}

	if watcher != nil {
		snap := inspect.BuildSnapshot(file, mod)
		_ = watcher.Broadcast(snap)
	}

	res.success = true
	res.elapsed = time.Since(start)
	return res
}

func countNodes(mod *ir.Module) int {
	count := len(mod.Funcs()) + len(mod.Globals())
	visited := make(map[*ir.Node]bool)
	var walk func(n *ir.Node)
	walk = func(n *ir.Node) {
		if n == nil || visited[n] {
			return
		}
		visited[n] = true
		count++
		for _, op := range n.Operands() {
			walk(op)
		}
	}
	for _, fn := range mod.Funcs() {
		walk(fn.Body())
	}
	for _, g := range mod.Globals() {
		walk(g.Init())
	}
	return count
}

func (r *buildResult) print(opts *options) {
	if r.bag != nil && !r.bag.Empty() {
		fmt.Fprint(os.Stderr, r.bag.Render(!opts.noColor))
		return
	}
	if !r.success {
		fmt.Fprintf(os.Stderr, "fir: %s: %s\n", r.file, r.message)
		return
	}
	if opts.verbose {
		fmt.Printf("%s: %s nodes, %s funcs, %s blocks in %s\n",
			r.file,
			humanize.Comma(int64(r.nodes)),
			humanize.Comma(int64(r.funcs)),
			humanize.Comma(int64(r.blocks)),
			r.elapsed)
	}
}
