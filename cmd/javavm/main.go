// javavm runs Java classes on the emulated VM and inspects how their
// symbolic references link.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/sync/errgroup"

	"github.com/daimatz/javavm/pkg/classdef"
	"github.com/daimatz/javavm/pkg/config"
	"github.com/daimatz/javavm/pkg/interp"
	"github.com/daimatz/javavm/pkg/intrinsics"
	"github.com/daimatz/javavm/pkg/link"
	"github.com/daimatz/javavm/pkg/native"
	"github.com/daimatz/javavm/pkg/stacktrace"
	"github.com/daimatz/javavm/pkg/vm"
)

func main() {
	configDir := flag.String("config", "", "Directory holding javavm.toml (default: search upward from the working directory)")
	classpath := flag.String("cp", "", "Class path directories, separated by ':'")
	defs := flag.String("defs", "", "YAML class definition files, separated by ','")
	jmod := flag.String("jmod", "", "Path to java.base.jmod")
	preload := flag.String("preload", "", "Classes to load before starting, separated by ','")
	resolve := flag.String("resolve", "", "Resolve one reference instead of running: "+strings.Join(resolveOpNames(), ", "))
	ref := flag.String("ref", "", "Reference to resolve, as owner.name:descriptor")
	caller := flag.String("caller", "", "Class containing the call site (default: the reference owner)")
	receiver := flag.String("receiver", "", "Receiver class for invokevirtual and invokeinterface")
	traceOut := flag.String("trace-out", "", "Write the report of an uncaught exception to this file as CBOR")
	watch := flag.String("watch", "", "Print the frame before instructions run, as owner.name:desc@pc, separated by ','")
	verbosity := flag.Int("v", -1, "Log verbosity (default: from javavm.toml)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: javavm [options] <class> [args...]\n")
		fmt.Fprintf(os.Stderr, "       javavm [options] -resolve <op> -ref <owner.name:desc>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  javavm -cp out demo/Main                 # Run demo/Main.main\n")
		fmt.Fprintf(os.Stderr, "  javavm -defs shapes.yaml -resolve invokevirtual \\\n")
		fmt.Fprintf(os.Stderr, "      -ref demo/Shape.area:()I -receiver demo/Square\n")
	}
	flag.Parse()

	cfg, err := loadConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *classpath != "" {
		cfg.Loader.Classpath = append(cfg.Loader.Classpath, absPaths(filepath.SplitList(*classpath))...)
	}
	if *defs != "" {
		cfg.Loader.Defs = append(cfg.Loader.Defs, absPaths(strings.Split(*defs, ","))...)
	}
	if *jmod != "" {
		cfg.Loader.Jmod = absPaths([]string{*jmod})[0]
	}
	if *verbosity >= 0 {
		cfg.Log.Verbosity = *verbosity
	}
	commonlog.Configure(cfg.Log.Verbosity, nil)

	env, err := newEnvironment(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *preload != "" {
		if err := env.preload(context.Background(), strings.Split(*preload, ",")); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if *watch != "" {
		for _, spec := range strings.Split(*watch, ",") {
			if err := env.watch(os.Stderr, spec); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}
	}

	if *resolve != "" {
		if err := env.resolve(os.Stdout, *resolve, *ref, *caller, *receiver); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}
	className := strings.ReplaceAll(strings.TrimSuffix(flag.Arg(0), ".class"), ".", "/")
	os.Exit(env.run(className, flag.Args()[1:], *traceOut))
}

func loadConfig(dir string) (*config.Config, error) {
	if dir != "" {
		return config.Load(dir)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return config.FindAndLoad(wd)
}

// absPaths makes command-line paths relative to the working directory
// rather than to javavm.toml.
func absPaths(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		out[i] = p
	}
	return out
}

// environment is one VM wired from a configuration.
type environment struct {
	machine *vm.VM
	linker  *link.Linker
	interp  *interp.Interpreter
}

func newEnvironment(cfg *config.Config) (*environment, error) {
	var loaders vm.ChainClassLoader
	if paths := cfg.DefsPaths(); len(paths) > 0 {
		cl, err := classdef.NewClassLoader(paths...)
		if err != nil {
			return nil, err
		}
		loaders = append(loaders, cl)
	}
	for _, dir := range cfg.ClasspathPaths() {
		loaders = append(loaders, vm.NewUserClassLoader(dir, nil))
	}
	if jmodPath := cfg.JmodPath(); jmodPath != "" {
		loaders = append(loaders, vm.NewJmodClassLoader(jmodPath))
	}

	d, err := vm.NewDictionary(loaders)
	if err != nil {
		return nil, err
	}
	machine := vm.NewVM(d)
	if cfg.Trace.MaxFrameDepth > 0 {
		machine.MaxFrameDepth = cfg.Trace.MaxFrameDepth
	}

	r := link.NewResolver(d, machine, intrinsics.NewRegistry(d.MethodHandle()))
	r.StrictAccess = cfg.Link.StrictAccess
	linker := link.NewLinker(r, d, cfg.LinkOptions())
	natives := native.NewDefaultRegistry(stacktrace.Capturer{MaxDepth: cfg.Trace.MaxDepth})

	return &environment{
		machine: machine,
		linker:  linker,
		interp:  interp.New(machine, linker, natives),
	}, nil
}

// preload loads names concurrently so that parse errors surface before
// anything runs.
func (e *environment) preload(ctx context.Context, names []string) error {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		g.Go(func() error {
			_, err := e.machine.Dict.LoadClass(name)
			return err
		})
	}
	return g.Wait()
}

// watch installs a breakpoint that prints the frame to w.
func (e *environment) watch(w io.Writer, spec string) error {
	ref, pcText, ok := strings.Cut(strings.TrimSpace(spec), "@")
	if !ok {
		return fmt.Errorf("bad watch %q, want owner.name:desc@pc", spec)
	}
	pc, err := strconv.Atoi(pcText)
	if err != nil || pc < 0 {
		return fmt.Errorf("bad watch %q: invalid pc %q", spec, pcText)
	}
	owner, name, desc, err := parseRef(ref)
	if err != nil {
		return err
	}
	c, err := e.machine.Dict.LoadClass(owner)
	if err != nil {
		return err
	}
	m := c.FindMethod(name, desc)
	if m == nil {
		return fmt.Errorf("watch: %s.%s%s not found", owner, name, desc)
	}
	e.interp.Watch(m, pc, func(bp interp.Breakpoint) {
		fmt.Fprintf(w, "watch %s\n", bp)
	})
	return nil
}

// run executes className.main and returns the process exit code.
func (e *environment) run(className string, args []string, traceOut string) int {
	t := e.machine.NewThread("main")
	err := e.interp.RunMain(t, className, args)
	if err == nil {
		return 0
	}

	var ex *vm.JavaException
	if !errors.As(err, &ex) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	report := interp.Report(t, ex)
	printReport(os.Stderr, t.Name(), report)
	if traceOut != "" {
		if err := writeReport(traceOut, report); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	return 1
}

func printReport(f *os.File, thread string, r *stacktrace.Report) {
	var w io.Writer = f
	if colorEnabled(f) {
		fmt.Fprint(w, "\x1b[31m")
		defer fmt.Fprint(w, "\x1b[0m")
	}
	interp.PrintStackTrace(w, thread, r)
}

func colorEnabled(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func writeReport(path string, r *stacktrace.Report) error {
	data, err := stacktrace.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding trace: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing trace: %w", err)
	}
	return nil
}
