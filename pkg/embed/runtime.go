// Package infact embeds the configuration language in Go programs.
//
//	rt, err := infact.New(infact.Options{}, examples.Register)
//	if err != nil { ... }
//	if err := rt.EvalFile("pets.inf"); err != nil { ... }
//	owner, err := infact.Get[examples.PetOwner](rt, "owner")
package infact

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/funvibe/infact/internal/config"
	"github.com/funvibe/infact/internal/diagnostics"
	"github.com/funvibe/infact/internal/source"
	"github.com/funvibe/infact/pkg/environment"
	"github.com/funvibe/infact/pkg/factory"
	"github.com/funvibe/infact/pkg/interpreter"
)

// Options configure a Runtime. The zero value returns errors to the caller
// without printing them and logs nothing.
type Options struct {
	// Debug is the tracing level: 0 warnings, 1 imports, 2 type inference.
	Debug int
	// ErrorPolicy is "return" (the default here), "log" or "exit".
	ErrorPolicy string
	ImportPaths []string
	// SourceCache is the number of source files kept in memory.
	SourceCache int
	// Color is "auto", "always" or "never".
	Color string
	// Stderr receives diagnostics and log output; defaults to os.Stderr.
	Stderr io.Writer
	// Opener opens source files; defaults to the file system.
	Opener source.Opener
}

// OptionsFromConfig turns a project configuration into Options.
func OptionsFromConfig(p *config.Project) Options {
	return Options{
		Debug:       p.Debug,
		ErrorPolicy: p.ErrorPolicy,
		ImportPaths: p.ImportPaths,
		SourceCache: p.SourceCache,
		Color:       p.Color,
	}
}

// Runtime is one registry, environment and interpreter.
type Runtime struct {
	registry    *factory.Registry
	env         *environment.Environment
	interp      *interpreter.Interpreter
	marshaller  *Marshaller
	logger      *slog.Logger
	cachedFiles *source.CachedOpener
}

// New creates a runtime whose registry holds the types of modules.
func New(opts Options, modules ...factory.Module) (*Runtime, error) {
	policy := interpreter.ReturnErrors
	if opts.ErrorPolicy != "" {
		var err error
		if policy, err = interpreter.ParsePolicy(opts.ErrorPolicy); err != nil {
			return nil, err
		}
	}
	colorMode, err := diagnostics.ParseColorMode(opts.Color)
	if err != nil {
		return nil, err
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	logger := NewLogger(stderr, opts.Debug)
	registry := factory.NewRegistry(modules...)
	env := environment.New(registry, logger)
	interp := interpreter.New(env, policy)
	interp.SetPrinter(diagnostics.NewPrinter(stderr, diagnostics.UseColor(stderr, colorMode)))
	interp.SetImportPaths(opts.ImportPaths)

	rt := &Runtime{
		registry:   registry,
		env:        env,
		interp:     interp,
		marshaller: NewMarshaller(registry),
		logger:     env.Logger(),
	}

	var opener source.Opener = source.FileOpener{}
	if opts.Opener != nil {
		opener = opts.Opener
	}
	if opts.SourceCache > 0 {
		cached, err := source.NewCachedOpener(opener, opts.SourceCache)
		if err != nil {
			return nil, fmt.Errorf("creating source cache: %w", err)
		}
		rt.cachedFiles = cached
		opener = cached
	}
	interp.SetOpener(opener)
	return rt, nil
}

// NewFromConfig creates a runtime configured by the infact.yaml or
// infact.toml governing dir.
func NewFromConfig(dir string, modules ...factory.Module) (*Runtime, error) {
	p, err := config.Discover(dir)
	if err != nil {
		return nil, err
	}
	return New(OptionsFromConfig(p), modules...)
}

// NewLogger returns a text logger on w whose level follows debug: 0 logs
// warnings, 1 adds imports, 2 and above add everything.
func NewLogger(w io.Writer, debug int) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case debug >= 2:
		level = slog.LevelDebug
	case debug == 1:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (rt *Runtime) EvalFile(path string) error {
	rt.logger.Debug("evaluating file", "path", path)
	return rt.interp.EvalFile(path)
}

func (rt *Runtime) EvalString(src string) error {
	return rt.interp.EvalString(src)
}

// EvalReader evaluates the source read from r; name appears in diagnostics.
func (rt *Runtime) EvalReader(name string, r io.Reader) error {
	return rt.interp.EvalReader(name, r)
}

// Set defines a variable from a Go value. The type is inferred the way
// Marshaller.ToValue does.
func (rt *Runtime) Set(name string, val interface{}) error {
	v, typ, err := rt.marshaller.ToValue(val)
	if err != nil {
		return fmt.Errorf("setting %s: %w", name, err)
	}
	return rt.env.Set(name, typ, v)
}

// SetTyped defines a variable of an explicit type, which may be an
// abstract type, a primitive or a vector of either.
func (rt *Runtime) SetTyped(name, typ string, val interface{}) error {
	vm := rt.env.VarMapForType(typ)
	if vm == nil {
		return fmt.Errorf("setting %s: unknown type %q", name, typ)
	}
	v, err := rt.marshaller.ToTyped(val, vm.Name())
	if err != nil {
		return fmt.Errorf("setting %s: %w", name, err)
	}
	return rt.env.Set(name, vm.Name(), v)
}

func (rt *Runtime) Environment() *environment.Environment { return rt.env }

func (rt *Runtime) Registry() *factory.Registry { return rt.registry }

func (rt *Runtime) Interpreter() *interpreter.Interpreter { return rt.interp }

// CachedFiles is the number of source files held by the source cache.
func (rt *Runtime) CachedFiles() int {
	if rt.cachedFiles == nil {
		return 0
	}
	return rt.cachedFiles.Len()
}

// Get returns the variable name as a T; see environment.Get.
func Get[T any](rt *Runtime, name string) (T, error) {
	return environment.Get[T](rt.env, name)
}
