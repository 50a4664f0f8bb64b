package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseConfigure  Phase = "configure"  // backend configuration
	PhaseTarget     Phase = "target"     // target machine construction
	PhaseParse      Phase = "parse"      // module binary decoding
	PhaseValidate   Phase = "validate"   // module validation
	PhaseCompile    Phase = "compile"    // compilation pipeline
	PhaseLower      Phase = "lower"      // function body lowering
	PhaseTrampoline Phase = "trampoline" // trampoline generation
	PhaseRuntime    Phase = "runtime"    // calls through trampolines
	PhaseLinking    Phase = "linking"    // host import binding
)

// Kind categorizes the error
type Kind string

const (
	KindUnsupportedTarget Kind = "unsupported_target"
	KindMissingFeature    Kind = "missing_required_feature"
	KindTrampoline        Kind = "trampoline_generation"
	KindLowering          Kind = "lowering"
	KindUnsupported       Kind = "unsupported"
	KindInvalidInput      Kind = "invalid_input"
	KindInvalidData       Kind = "invalid_data"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindTypeMismatch      Kind = "type_mismatch"
	KindNotFound          Kind = "not_found"
	KindTrap              Kind = "trap"
	KindInstantiation     Kind = "instantiation"
	KindCanceled          Kind = "canceled"
)

// Sentinels for errors.Is. They match any error of the same Kind regardless of phase.
var (
	ErrUnsupportedTarget      = &Error{Kind: KindUnsupportedTarget}
	ErrMissingRequiredFeature = &Error{Kind: KindMissingFeature}
	ErrTrampolineGeneration   = &Error{Kind: KindTrampoline}
	ErrLowering               = &Error{Kind: KindLowering}
	ErrTrap                   = &Error{Kind: KindTrap}
)

// Error is the structured error type used throughout the compiler
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	Target  string // architecture or triple, when relevant
	Feature string // feature name, when relevant
	Detail  string
	Path    []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Target != "" || e.Feature != "" {
		b.WriteString(": ")
		if e.Target != "" && e.Feature != "" {
			b.WriteString("target ")
			b.WriteString(e.Target)
			b.WriteString(", feature ")
			b.WriteString(e.Feature)
		} else if e.Target != "" {
			b.WriteString("target ")
			b.WriteString(e.Target)
		} else {
			b.WriteString("feature ")
			b.WriteString(e.Feature)
		}
	}

	if e.Detail != "" {
		if e.Target != "" || e.Feature != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a phase matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the path of the offending item, e.g. signature and slot
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Target sets the architecture or triple name
func (b *Builder) Target(t string) *Builder {
	b.err.Target = t
	return b
}

// Feature sets the feature name
func (b *Builder) Feature(f string) *Builder {
	b.err.Feature = f
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for the compiler error taxonomy

// UnsupportedTarget reports an architecture without a codegen backend
func UnsupportedTarget(arch string) *Error {
	return &Error{
		Phase:  PhaseTarget,
		Kind:   KindUnsupportedTarget,
		Target: arch,
		Detail: "no code generation backend for this architecture",
	}
}

// MissingRequiredFeature reports a backend-mandatory CPU feature absent from the target
func MissingRequiredFeature(arch, feature string) *Error {
	return &Error{
		Phase:   PhaseTarget,
		Kind:    KindMissingFeature,
		Target:  arch,
		Feature: feature,
		Detail:  "the target needs to support this feature",
	}
}

// TrampolineGeneration reports a contract violation found while building a trampoline
func TrampolineGeneration(sigIndex uint32, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{
		Phase:  PhaseTrampoline,
		Kind:   KindTrampoline,
		Path:   []string{fmt.Sprintf("trmp%d", sigIndex)},
		Detail: detail,
		Value:  sigIndex,
	}
}

// Lowering wraps an error produced by a backend's lowering stage
func Lowering(backend string, cause error) *Error {
	return &Error{
		Phase:  PhaseLower,
		Kind:   KindLowering,
		Detail: backend,
		Cause:  cause,
	}
}

// Trap reports a callee that aborted during a trampoline call
func Trap(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindTrap,
		Detail: detail,
		Cause:  cause,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, got, want string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		Detail: fmt.Sprintf("got %s, want %s", got, want),
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Canceled reports a compilation stopped by its context
func Canceled(phase Phase, cause error) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindCanceled,
		Cause: cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// KindOf returns the Kind of the outermost *Error in err's chain, or ""
// if there is none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether any *Error in err's chain has kind k.
func IsKind(err error, k Kind) bool {
	return stderrors.Is(err, &Error{Kind: k})
}
