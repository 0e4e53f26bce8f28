// Package interpreter evaluates sequences of import and assignment
// statements into an environment.
package interpreter

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/funvibe/infact/internal/config"
	"github.com/funvibe/infact/internal/diagnostics"
	"github.com/funvibe/infact/internal/lexer"
	"github.com/funvibe/infact/internal/source"
	"github.com/funvibe/infact/internal/token"
	"github.com/funvibe/infact/internal/utils"
	"github.com/funvibe/infact/pkg/environment"
)

// ErrorPolicy decides what happens to the first error of an evaluation.
type ErrorPolicy int

const (
	// ReturnErrors hands the error to the caller.
	ReturnErrors ErrorPolicy = iota
	// LogErrors reports the error and hands it to the caller.
	LogErrors
	// ExitOnError reports the error and exits with status 1.
	ExitOnError
)

func (p ErrorPolicy) String() string {
	switch p {
	case ReturnErrors:
		return config.PolicyReturn
	case LogErrors:
		return config.PolicyLog
	case ExitOnError:
		return config.PolicyExit
	}
	return fmt.Sprintf("ErrorPolicy(%d)", int(p))
}

// ParsePolicy parses the error_policy configuration value.
func ParsePolicy(s string) (ErrorPolicy, error) {
	switch strings.ToLower(s) {
	case config.PolicyReturn:
		return ReturnErrors, nil
	case "", config.PolicyLog:
		return LogErrors, nil
	case config.PolicyExit:
		return ExitOnError, nil
	}
	return 0, fmt.Errorf("unknown error policy %q", s)
}

// StringSourceName names sources evaluated with EvalString in diagnostics.
const StringSourceName = "<string>"

type frame struct {
	name string
	abs  string
	dir  string
}

// Interpreter reads statements and assigns variables in its environment.
// It is not safe for concurrent use.
type Interpreter struct {
	env         *environment.Environment
	policy      ErrorPolicy
	opener      source.Opener
	importPaths []string
	printer     *diagnostics.Printer
	logger      *slog.Logger
	exit        func(int)

	files []frame
}

// New creates an interpreter that evaluates into env.
func New(env *environment.Environment, policy ErrorPolicy) *Interpreter {
	return &Interpreter{
		env:     env,
		policy:  policy,
		opener:  source.FileOpener{},
		printer: diagnostics.NewPrinter(os.Stderr, diagnostics.UseColor(os.Stderr, diagnostics.ColorAuto)),
		logger:  env.Logger(),
		exit:    os.Exit,
	}
}

func (in *Interpreter) Environment() *environment.Environment { return in.env }

func (in *Interpreter) Policy() ErrorPolicy { return in.policy }

// SetOpener replaces the way source files are opened.
func (in *Interpreter) SetOpener(o source.Opener) { in.opener = o }

// SetImportPaths sets the directories searched for imports after the
// importing file's directory and the working directory.
func (in *Interpreter) SetImportPaths(dirs []string) {
	in.importPaths = append([]string(nil), dirs...)
}

// SetPrinter sets where LogErrors and ExitOnError report errors.
func (in *Interpreter) SetPrinter(p *diagnostics.Printer) { in.printer = p }

func (in *Interpreter) SetLogger(l *slog.Logger) { in.logger = l }

// SetExit replaces os.Exit for ExitOnError.
func (in *Interpreter) SetExit(exit func(int)) { in.exit = exit }

// EvalFile evaluates the file at path.
func (in *Interpreter) EvalFile(path string) error {
	if !source.CanRead(in.opener, path) {
		return in.handle(diagnostics.NewError(diagnostics.ErrR001, token.Token{}, path))
	}
	return in.handle(in.evalFile(path))
}

// EvalString evaluates src. Relative imports are resolved against the
// working directory.
func (in *Interpreter) EvalString(src string) error {
	return in.EvalReader(StringSourceName, strings.NewReader(src))
}

// EvalReader evaluates the statements read from r; name is used in
// diagnostics.
func (in *Interpreter) EvalReader(name string, r io.Reader) error {
	in.push(frame{name: name})
	defer in.pop()
	return in.handle(in.eval(lexer.New(r)))
}

func (in *Interpreter) handle(err error) error {
	if err == nil {
		return nil
	}
	switch in.policy {
	case LogErrors:
		in.printer.Print(err)
	case ExitOnError:
		in.printer.Print(err)
		in.exit(1)
	}
	return err
}

func (in *Interpreter) push(f frame) { in.files = append(in.files, f) }

func (in *Interpreter) pop() { in.files = in.files[:len(in.files)-1] }

func (in *Interpreter) current() frame { return in.files[len(in.files)-1] }

func (in *Interpreter) evalFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	rc, err := in.opener.Open(path)
	if err != nil {
		return diagnostics.Wrap(diagnostics.ErrR001, token.Token{}, err, path)
	}
	defer rc.Close()

	in.logger.Debug("evaluating", "module", utils.ExtractModuleName(path), "path", path)
	in.push(frame{name: path, abs: abs, dir: filepath.Dir(path)})
	defer in.pop()
	return in.eval(lexer.New(rc))
}

// eval runs the statement loop until the end of input or the first error.
func (in *Interpreter) eval(s *lexer.Scanner) error {
	for s.HasNext() {
		var err error
		if s.PeekToken().Is(config.ImportWord) {
			err = in.evalImport(s)
		} else {
			err = in.evalAssignment(s)
		}
		if err != nil {
			return in.decorate(err, s)
		}
	}
	return nil
}

func (in *Interpreter) evalImport(s *lexer.Scanner) error {
	s.Next()
	tok := s.PeekToken()
	if tok.Type != token.STRING {
		return s.WrongType(token.STRING.String())
	}
	s.Next()

	cur := in.current()
	in.logger.Info("importing", "from", cur.name, "file", tok.Text)
	path, ok := in.resolve(cur.dir, tok.Text)
	if !ok {
		return diagnostics.NewError(diagnostics.ErrR001, tok, tok.Text)
	}
	if in.isOpen(path) {
		return diagnostics.NewError(diagnostics.ErrR002, tok, tok.Text)
	}
	if err := in.evalFile(path); err != nil {
		return err
	}
	_, err := s.Expect(";")
	return err
}

// resolve finds the file an import refers to.
func (in *Interpreter) resolve(dir, importPath string) (string, bool) {
	for _, candidate := range utils.ImportCandidates(dir, importPath, in.importPaths) {
		if source.CanRead(in.opener, candidate) {
			return candidate, true
		}
	}
	return "", false
}

func (in *Interpreter) isOpen(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	for _, f := range in.files {
		if f.abs == abs {
			return true
		}
	}
	return false
}

func (in *Interpreter) evalAssignment(s *lexer.Scanner) error {
	tok := s.PeekToken()
	if tok.Type == token.ILLEGAL {
		s.Next()
		return lexer.IllegalError(tok)
	}
	vm := in.env.VarMapForType(tok.Text)
	if tok.Type != token.IDENTIFIER && vm == nil {
		return s.WrongType(token.IDENTIFIER.String() + " or type specifier")
	}

	typ := ""
	if vm != nil {
		s.Next()
		typ = vm.Name()
		if s.PeekType() != token.IDENTIFIER {
			return s.WrongType(token.IDENTIFIER.String())
		}
	}
	name := s.Next()

	if _, err := s.Expect("="); err != nil {
		return err
	}
	if !s.HasNext() {
		return diagnostics.NewError(diagnostics.ErrP003, s.PeekToken(), "a value")
	}
	if err := in.env.ReadAndSet(name, s, typ); err != nil {
		return err
	}
	_, err := s.Expect(";")
	return err
}

// decorate attaches the file, source line and import chain to err. Errors
// from imported files arrive already decorated.
func (in *Interpreter) decorate(err error, s *lexer.Scanner) error {
	var de *diagnostics.DiagnosticError
	if !errors.As(err, &de) || de.File != "" {
		return err
	}
	de.File = in.current().name
	if de.HasPosition() {
		de.SourceLine = s.LineAt(de.Token.Start)
	}
	for i := len(in.files) - 2; i >= 0; i-- {
		de.Imports = append(de.Imports, in.files[i].name)
	}
	return err
}
