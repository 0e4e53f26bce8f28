package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/mattn/go-colorable"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/urfave/cli.v1"

	"github.com/funvibe/infact/internal/config"
	"github.com/funvibe/infact/internal/diagnostics"
	"github.com/funvibe/infact/internal/lexer"
	"github.com/funvibe/infact/internal/token"
	infact "github.com/funvibe/infact/pkg/embed"
	"github.com/funvibe/infact/pkg/environment"
	"github.com/funvibe/infact/pkg/factory"
	"github.com/funvibe/infact/pkg/interpreter"
)

// Version of the command-line driver.
var Version = "1.1.0"

// errReported is returned by commands whose error has already been shown.
var errReported = errors.New("error already reported")

var (
	configFlag = cli.StringFlag{
		Name:  "config, c",
		Usage: "configuration file (default: infact.yaml, infact.yml or infact.toml found upwards from the working directory)",
	}
	debugFlag = cli.IntFlag{
		Name:  "debug, d",
		Usage: "tracing level: 0 warnings, 1 imports, 2 type inference",
	}
	policyFlag = cli.StringFlag{
		Name:  "policy",
		Usage: "what to do on the first error: return, log or exit",
	}
	colorFlag = cli.StringFlag{
		Name:  "color",
		Usage: "color diagnostics: auto, always or never",
	}
	dumpFlag = cli.BoolFlag{
		Name:  "dump",
		Usage: "print every variable in full",
	}
	exprFlag = cli.StringFlag{
		Name:  "e",
		Usage: "evaluate `SOURCE` after the files",
	}
)

type runner struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	modules []factory.Module
}

// NewApp builds the command line for a registry holding the types of
// modules.
func NewApp(stdin io.Reader, stdout, stderr io.Writer, modules ...factory.Module) *cli.App {
	r := &runner{stdin: stdin, stdout: stdout, stderr: stderr, modules: modules}

	app := cli.NewApp()
	app.Name = "infact"
	app.Usage = "evaluate object configuration files"
	app.Version = Version
	app.Writer = stdout
	app.ErrWriter = stderr
	app.Commands = []cli.Command{
		{
			Name:      "eval",
			Usage:     "evaluate files into one environment and print its variables",
			ArgsUsage: "FILE|DIR...",
			Flags:     []cli.Flag{configFlag, debugFlag, policyFlag, colorFlag, dumpFlag, exprFlag},
			Action:    r.eval,
		},
		{
			Name:   "types",
			Usage:  "list the registered types and their parameters",
			Action: r.types,
		},
		{
			Name:      "tokens",
			Usage:     "print the token stream of a file or standard input",
			ArgsUsage: "[FILE]",
			Action:    r.tokens,
		},
	}
	return app
}

// Run runs the command line and returns the exit status.
func Run(args []string, modules ...factory.Module) int {
	stderr := colorable.NewColorableStderr()
	app := NewApp(os.Stdin, colorable.NewColorableStdout(), stderr, modules...)
	if err := app.Run(args); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(stderr, "infact: %v\n", err)
		}
		return 1
	}
	return 0
}

func loadProject(path string) (*config.Project, error) {
	if path != "" {
		return config.LoadConfig(path)
	}
	return config.Discover(".")
}

func (r *runner) eval(ctx *cli.Context) error {
	project, err := loadProject(ctx.String("config"))
	if err != nil {
		return err
	}
	opts := infact.OptionsFromConfig(project)
	if ctx.IsSet("debug") {
		opts.Debug = ctx.Int("debug")
	}
	if ctx.IsSet("policy") {
		opts.ErrorPolicy = ctx.String("policy")
	}
	if ctx.IsSet("color") {
		opts.Color = ctx.String("color")
	}
	opts.Stderr = r.stderr

	src := ctx.String("e")
	if ctx.NArg() == 0 && src == "" {
		return errors.New("eval: nothing to evaluate; give files or -e SOURCE")
	}

	rt, err := infact.New(opts, r.modules...)
	if err != nil {
		return err
	}
	paths, err := sourceFiles(ctx.Args())
	if err != nil {
		return err
	}
	for _, path := range paths {
		if err := rt.EvalFile(path); err != nil {
			return r.failed(rt, opts, err)
		}
	}
	if src != "" {
		if err := rt.EvalString(src); err != nil {
			return r.failed(rt, opts, err)
		}
	}
	r.printEnvironment(rt.Environment(), ctx.Bool("dump"))
	return nil
}

// sourceFiles replaces each directory in args by the source files directly
// inside it, in name order.
func sourceFiles(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() && config.HasSourceExt(entry.Name()) {
				paths = append(paths, filepath.Join(arg, entry.Name()))
			}
		}
	}
	return paths, nil
}

// failed reports err unless the interpreter already has.
func (r *runner) failed(rt *infact.Runtime, opts infact.Options, err error) error {
	if rt.Interpreter().Policy() == interpreter.ReturnErrors {
		mode, _ := diagnostics.ParseColorMode(opts.Color)
		diagnostics.NewPrinter(r.stderr, diagnostics.UseColor(r.stderr, mode)).Print(err)
	}
	return errReported
}

func (r *runner) printEnvironment(env *environment.Environment, dump bool) {
	dumper := spew.ConfigState{
		Indent:                  "  ",
		DisablePointerAddresses: true,
		DisableCapacities:       true,
		SortKeys:                true,
	}
	for _, name := range env.Names() {
		v, typ, _ := env.Lookup(name)
		if dump {
			fmt.Fprintf(r.stdout, "%s %s = %s", typ, name, dumper.Sdump(v))
			continue
		}
		fmt.Fprintf(r.stdout, "%s %s = %s;\n", typ, name, factory.Describe(v))
	}
}

func (r *runner) types(ctx *cli.Context) error {
	registry := factory.NewRegistry(r.modules...)

	table := tablewriter.NewWriter(r.stdout)
	table.SetHeader([]string{"Abstract type", "Concrete type", "Parameters"})
	table.SetAutoWrapText(false)
	table.SetAutoMergeCells(true)
	table.SetRowLine(true)
	for _, f := range registry.Factories() {
		for _, concrete := range f.Concretes() {
			params, err := f.Params(concrete)
			if err != nil {
				return fmt.Errorf("%s: %w", concrete, err)
			}
			table.Append([]string{f.Name(), concrete, formatParams(params)})
		}
	}
	table.Render()
	return nil
}

func formatParams(params []factory.Param) string {
	lines := make([]string, len(params))
	for i, p := range params {
		lines[i] = fmt.Sprintf("%s %s (%s)", p.Type, p.Name, p.Kind)
	}
	return strings.Join(lines, "\n")
}

func (r *runner) tokens(ctx *cli.Context) error {
	in := r.stdin
	name := "<stdin>"
	if ctx.NArg() > 0 {
		name = ctx.Args().First()
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	s := lexer.New(in)
	table := tablewriter.NewWriter(r.stdout)
	table.SetHeader([]string{"Position", "Type", "Token", "Offset"})
	table.SetAutoWrapText(false)
	var illegal *token.Token
	for {
		tok := s.NextToken()
		if tok.Type == token.EOF {
			break
		}
		table.Append([]string{
			fmt.Sprintf("%d:%d", tok.Line, tok.Column),
			tok.Type.String(),
			fmt.Sprintf("%q", tok.Text),
			fmt.Sprint(tok.Start),
		})
		if tok.Type == token.ILLEGAL {
			illegal = &tok
			break
		}
	}
	table.Render()

	if illegal != nil {
		de := lexer.IllegalError(*illegal)
		de.File = name
		de.SourceLine = s.LineAt(illegal.Start)
		diagnostics.NewPrinter(r.stderr, diagnostics.UseColor(r.stderr, diagnostics.ColorAuto)).Print(de)
		return errReported
	}
	return nil
}
