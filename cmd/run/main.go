package main

import (
	"flag"
	"fmt"
	"os"
	goruntime "runtime"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/mono-runtime/config"
	"github.com/wippyai/mono-runtime/engine"
	"github.com/wippyai/mono-runtime/runtime"
)

// The embedded runtime only accepts calls from the thread that initialized
// it, so main keeps its thread.
func init() {
	goruntime.LockOSThread()
}

// argList collects a repeatable string flag.
type argList []string

func (a *argList) String() string     { return strings.Join(*a, ",") }
func (a *argList) Set(v string) error { *a = append(*a, v); return nil }

func main() {
	var (
		configFile  = flag.String("config", "", "Path to YAML config (defaults plus MONO_RUNTIME_* env when empty)")
		assembly    = flag.String("assembly", "", "Assembly to load, resolved against assembly_paths")
		className   = flag.String("class", "", "Class to use, e.g. Tests.Echo")
		methodName  = flag.String("method", "", "Static method name or descriptor, e.g. Identity(int)")
		list        = flag.Bool("list", false, "List the members of -class and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		args        argList
	)
	flag.Var(&args, "arg", "Method argument (repeatable)")
	flag.Parse()

	if *assembly == "" || *className == "" {
		fmt.Fprintln(os.Stderr, "Usage: run -assembly <file.dll> -class <Name> -method <Name> [-arg v ...]")
		fmt.Fprintln(os.Stderr, "       run -assembly <file.dll> -class <Name> -list")
		fmt.Fprintln(os.Stderr, "       run -assembly <file.dll> -class <Name> -i  (interactive mode)")
		os.Exit(1)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	engine.SetLogger(log)
	runtime.SetLogger(log)

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: -i needs a terminal on stdout")
			os.Exit(1)
		}
		if err := runInteractive(cfg, *assembly, *className); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, *assembly, *className, *methodName, args, *list); err != nil {
		log.Debug("run failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.FromEnv()
	}
	return config.Load(path)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := cfg.Log.ZapLevel()
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if cfg.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func run(cfg *config.Config, assembly, class, method string, args []string, listOnly bool) error {
	eng, err := engine.Open(cfg.Library)
	if err != nil {
		return err
	}
	s, err := openSession(eng, cfg, assembly, class)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Printf("Assembly: %s\n", s.asm.Path())
	fmt.Printf("Class: %s\n", s.class.FullName())

	if listOnly || method == "" {
		printMembers(s.class)
		if method == "" && !listOnly {
			fmt.Printf("\nUse -method to call a static method.\n")
		}
		return nil
	}

	m, err := s.find(method, len(args))
	if err != nil {
		return err
	}
	fmt.Printf("\nCalling %s(%s)...\n", m.Name(), strings.Join(args, ", "))
	result, err := s.call(m, args)
	if err != nil {
		return fmt.Errorf("call %s: %w", m.Descriptor(), err)
	}
	fmt.Printf("Result: %s\n", result)
	return nil
}

func printMembers(cls *runtime.Class) {
	static := func(b bool) string {
		if b {
			return "static "
		}
		return ""
	}

	fmt.Printf("\nFields:\n")
	for _, f := range cls.Fields() {
		fmt.Printf("  %s%s %s\n", static(f.IsStatic()), typeName(f.Type()), f.Name())
	}

	fmt.Printf("\nProperties:\n")
	for _, p := range cls.Properties() {
		var access []string
		if p.Getter() != nil {
			access = append(access, "get")
		}
		if p.Setter() != nil {
			access = append(access, "set")
		}
		fmt.Printf("  %s { %s }\n", p.Name(), strings.Join(access, "; "))
	}

	fmt.Printf("\nMethods:\n")
	for _, m := range cls.Methods() {
		fmt.Printf("  %s%s -> %s\n", static(m.IsStatic()), m.Descriptor(), typeName(m.Signature().Return))
	}
}
