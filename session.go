// Package hmgcp ties the parser and the inference engine together into
// a single entry point: parse source text, run the combined HM/GCP
// fixed point over it, and report the root's printed type. Grounded on
// grailbio/gql's Session type (its Parse/EvalStatements pairing in
// main.go and typecheck_test.go), generalized from gql's evaluate-a-
// query contract into analyze-a-program.
package hmgcp

import (
	"runtime/debug"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hmgcp/infer"
	"github.com/grailbio/hmgcp/parser"
)

// Opts configures a Session. It mirrors gql.Opts{CacheDir: ...}'s role
// as the one struct threading configuration from the CLI into the
// engine.
type Opts struct {
	// MaxWorklistIterations bounds the main worklist loop; zero uses
	// infer.DefaultOpts()'s value.
	MaxWorklistIterations int
	// RandomizeWorklist is the confluence-testing knob (spec.md §4.5).
	RandomizeWorklist bool
	// Trace records a worklist pop trace, retrievable via
	// Result.Trace, for debugging non-terminating inputs.
	Trace bool
}

// Session analyzes one program. A Session is safe to use to analyze
// independent programs from multiple goroutines, but a single Result's
// underlying engine is not reentrant while Run is executing (spec.md
// §5; spec_full.md §5).
type Session struct {
	opts Opts
}

// NewSession creates a Session with the given options.
func NewSession(opts Opts) *Session {
	return &Session{opts: opts}
}

// Result is the outcome of analyzing one program: its printed HM scheme,
// its GCP flow-type signature, the diagnostics pass 4 recorded against
// it (spec.md §7: missing fields, nil-deref loads, unification
// conflicts -- the same notes PrintScheme already embeds inline in
// Scheme, exposed here structured for callers that don't want to parse
// a scheme string), and (if Opts.Trace was set) the worklist's
// convergence trace.
type Result struct {
	Scheme    string
	Signature string
	Errors    []string
	Trace     []string

	root *infer.Root
	eng  *infer.Engine
}

// Run parses src and runs the engine to a fixed point, returning the
// root's printed HM scheme and GCP flow signature. Parse errors are
// wrapped with github.com/pkg/errors upstream in package parser and
// returned unchanged here; internal invariant violations during
// analysis are recovered at this boundary via Recover, mirroring
// gql.Recover in panic.go, and surfaced as an error rather than
// propagated as a panic.
func (s *Session) Run(src string) (result *Result, err error) {
	root, perr := parser.Parse(src)
	if perr != nil {
		return nil, perr
	}

	err = Recover(func() {
		eng := infer.NewEngine(infer.Opts{
			MaxWorklistIterations: s.opts.MaxWorklistIterations,
			RandomizeWorklist:     s.opts.RandomizeWorklist,
			Trace:                 s.opts.Trace,
		})
		eng.Run(root)

		log.Debug.Printf("hmgcp: analysis complete")

		result = &Result{
			Scheme:    infer.PrintScheme(root.T2()),
			Signature: infer.Signature(eng, root),
			Errors:    infer.CollectErrors(root),
			Trace:     eng.ConvergenceTrace(),
			root:      root,
			eng:       eng,
		}
	})
	return result, err
}

// Recover runs cb, catching any panic it throws and turning it into an
// error. Mirrors gql.Recover's contract in panic.go exactly: internal
// invariant violations raised via panic/log.Panicf are what's expected
// to cross this boundary during analysis.
func Recover(cb func()) (err error) {
	defer func() {
		if e := recover(); e != nil {
			err = errors.E("panic %v: %v", e, string(debug.Stack()))
		}
	}()
	cb()
	return nil
}
