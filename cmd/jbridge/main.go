package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/daimatz/jbridge/pkg/bridge"
	"github.com/daimatz/jbridge/pkg/config"
	"github.com/daimatz/jbridge/pkg/native"
	"github.com/daimatz/jbridge/pkg/vm"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to "+config.FileName+" (default: search upward from the working directory)")
		classPath  = flag.String("cp", "", "Class path entries, separated by "+string(os.PathListSeparator))
		wrap       = flag.Bool("wrap", false, "Wrap out-of-range integer arguments instead of rejecting them")
		verbose    = flag.Bool("v", false, "Debug logging")
	)
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: jbridge [-config file] [-cp path] [-wrap] <class> [method [args...]]\n")
		os.Exit(1)
	}

	if err := run(*configFile, *classPath, *wrap, *verbose, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path, classPath string, wrap, verbose bool) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.FindAndLoad(".")
	}
	if err != nil {
		return nil, err
	}
	if classPath != "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		cfg.Dir = wd
		cfg.Runtime.ClassPath = filepath.SplitList(classPath)
	}
	if wrap {
		cfg.Bridge.WrapIntegers = true
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func run(configFile, classPath string, wrap, verbose bool, target string, args []string) error {
	cfg, err := loadConfig(configFile, classPath, wrap, verbose)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, err := cfg.Log.Logger()
	if err != nil {
		return err
	}
	defer logger.Sync()
	vm.SetLogger(logger.Named("vm"))
	bridge.SetLogger(logger.Named("bridge"))

	v := vm.NewVM(cfg.ClassLoader())
	if err := native.Install(v); err != nil {
		return fmt.Errorf("install natives: %w", err)
	}
	if cfg.Runtime.GCInterval > 0 {
		collector := vm.NewCollector(v, cfg.Runtime.GCInterval)
		collector.Start()
		defer collector.Stop()
	}

	b := bridge.New(v, bridge.WithIntegerWrap(cfg.Bridge.WrapIntegers))
	class, err := b.FindClass(strings.TrimSuffix(target, ".class"))
	if err != nil {
		return err
	}
	defer class.Close()

	var res any
	if len(args) == 0 {
		res, err = runMain(b, class, nil)
	} else {
		res, err = call(class, args[0], parseArgs(args[1:]))
	}
	if err != nil {
		return err
	}
	logger.Debug("call returned", zap.String("class", class.Name()), zap.Any("result", res))
	if _, void := res.(bridge.Void); !void {
		fmt.Println(format(res))
	}
	return nil
}

// runMain calls the static main(String[]) of class.
func runMain(b *bridge.Bridge, class *bridge.Class, args []string) (any, error) {
	argv, err := b.NewArray("Ljava/lang/String;", len(args))
	if err != nil {
		return nil, err
	}
	defer argv.Close()
	for i, a := range args {
		if err := argv.Set(i, a); err != nil {
			return nil, err
		}
	}
	return class.Invoke("main", argv)
}

// call invokes method statically when class declares it static, and on a
// fresh instance otherwise.
func call(class *bridge.Class, method string, args []any) (any, error) {
	if len(class.Type().MethodsNamed(method, true)) > 0 {
		return class.Invoke(method, args...)
	}
	inst, err := class.New()
	if err != nil {
		return nil, err
	}
	obj, ok := inst.(*bridge.Object)
	if !ok {
		return nil, fmt.Errorf("%s: constructor returned %T", class.Name(), inst)
	}
	defer obj.Close()
	return obj.Invoke(method, args...)
}

// parseArgs turns command line words into host values: integers, floats,
// booleans, null, and text for everything else.
func parseArgs(words []string) []any {
	out := make([]any, len(words))
	for i, w := range words {
		out[i] = parseArg(w)
	}
	return out
}

func parseArg(w string) any {
	if n, err := strconv.ParseInt(w, 10, 64); err == nil {
		if n >= math.MinInt32 && n <= math.MaxInt32 {
			return int32(n)
		}
		return n
	}
	if f, err := strconv.ParseFloat(w, 64); err == nil {
		return f
	}
	switch w {
	case "true", "false":
		return w == "true"
	case "null":
		return nil
	}
	return w
}

func format(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprint(v)
}
