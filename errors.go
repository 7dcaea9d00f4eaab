package colext

import (
	"fmt"
	"strings"

	"github.com/colext/colext/abi"
)

// Kind classifies a plugin invocation failure.
type Kind int

const (
	// KindSchema covers type-resolution failures: unsupported types,
	// malformed input schemas, resolver-reported conditions.
	KindSchema Kind = iota + 1
	// KindOptions covers kwargs failures: a required option missing from
	// the blob, or a malformed blob.
	KindOptions
	// KindArity reports a wrong input count, raised before the call.
	KindArity
	// KindPluginFault reports an abnormal termination contained inside
	// the plugin.
	KindPluginFault
	// KindCompute reports a domain failure the plugin explicitly raised.
	KindCompute
)

// String returns the conventional error type name for the kind.
func (k Kind) String() string {
	switch k {
	case KindSchema:
		return "SchemaError"
	case KindOptions:
		return "OptionsError"
	case KindArity:
		return "ArityError"
	case KindPluginFault:
		return "InternalPluginFault"
	case KindCompute:
		return "ComputationError"
	default:
		return "UnknownError"
	}
}

// ErrPlugin is a sentinel for use with errors.Is to check whether any
// error in a chain is a plugin *Error of any kind.
var ErrPlugin = &Error{}

// Error is a typed failure of a plugin expression. Messages that
// originated on the plugin side of the boundary have already been copied
// into host-owned memory by the time an Error is constructed.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is supports errors.Is: a zero-kind target matches any *Error, a target
// with a kind matches errors of that kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == 0 || t.Kind == e.Kind
}

func errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// errorFromCode maps a boundary error code to the host taxonomy. The
// message is cloned so the plugin side may free its copy immediately.
func errorFromCode(code abi.Code, message string) *Error {
	msg := strings.Clone(message)
	switch code {
	case abi.CodeUnsupportedType:
		return &Error{Kind: KindSchema, Message: msg}
	case abi.CodeMissingOption:
		return &Error{Kind: KindOptions, Message: msg}
	case abi.CodeArity:
		return &Error{Kind: KindArity, Message: msg}
	case abi.CodePluginFault:
		return &Error{Kind: KindPluginFault, Message: msg}
	case abi.CodeCompute:
		return &Error{Kind: KindCompute, Message: msg}
	default:
		return &Error{Kind: KindPluginFault, Message: fmt.Sprintf("unknown boundary code %d: %s", code, msg)}
	}
}

// errorFromResolverCode is errorFromCode with resolver semantics: a
// resolver has no business reporting computation failures, so compute
// conditions surface as schema errors.
func errorFromResolverCode(code abi.Code, message string) *Error {
	err := errorFromCode(code, message)
	if err.Kind == KindCompute {
		err.Kind = KindSchema
	}
	return err
}
