// Command qbvm compiles and runs programs: it takes a source file or a
// compiled image, with switches to emit bytecode, disassemble, or dump
// the AST instead of executing.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/goforj/godump"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/qbvm/qbvm/bytecode"
	"github.com/qbvm/qbvm/compiler"
	"github.com/qbvm/qbvm/config"
	"github.com/qbvm/qbvm/console"
	"github.com/qbvm/qbvm/vm"
)

var (
	emitPath   = flag.String("emit", "", "compile only and write the bytecode image to this path")
	disasm     = flag.Bool("disasm", false, "print the disassembly instead of running")
	dumpAST    = flag.Bool("dump-ast", false, "print the parsed AST instead of running")
	configPath = flag.String("config", "", "host configuration file (TOML)")
	testMode   = flag.Bool("test", false, "compile with immediate completion of blocking syscalls")
	verbose    = flag.Int("v", 0, "log verbosity")
)

func main() {
	flag.Parse()
	commonlog.Configure(*verbose, nil)

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: qbvm [flags] program.bas|program.qbc")
		flag.PrintDefaults()
		os.Exit(2)
	}
	if err := run(flag.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(path string) error {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}

	prog, err := load(path)
	if err != nil {
		return err
	}
	if prog == nil {
		// -dump-ast already printed.
		return nil
	}

	if *emitPath != "" {
		data, err := bytecode.MarshalProgram(prog)
		if err != nil {
			return err
		}
		return os.WriteFile(*emitPath, data, 0o644)
	}
	if *disasm {
		fmt.Print(bytecode.Disassemble(prog))
		return nil
	}

	return execute(prog, cfg)
}

// load reads a program: source compiles, a bytecode image unmarshals.
func load(path string) (*bytecode.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if strings.HasSuffix(path, ".qbc") {
		return bytecode.UnmarshalProgram(data)
	}

	c := compiler.New(compiler.Options{TestMode: *testMode})
	if *dumpAST {
		ast, errs := c.Parse(string(data))
		if len(errs) > 0 {
			return nil, compileError(errs)
		}
		godump.Dump(ast)
		return nil, nil
	}

	prog, errs := c.Compile(string(data))
	if len(errs) > 0 {
		return nil, compileError(errs)
	}
	return prog, nil
}

func compileError(errs []*compiler.Error) error {
	lines := make([]string, len(errs))
	for i, e := range errs {
		lines[i] = e.Error()
	}
	return fmt.Errorf("%s", strings.Join(lines, "\n"))
}

func execute(prog *bytecode.Program, cfg *config.Config) error {
	term := console.NewTerminal()
	defer term.Close()

	m := vm.New(prog, cfg.VM(), term, console.NewBeeper(), console.NewFileSystem())

	var failure error
	m.OnError(func(re *vm.RuntimeError) {
		failure = re
		// The machine is suspended; stop the scheduler off this turn.
		go m.Stop()
	})

	m.Start()
	m.Wait()
	return failure
}
