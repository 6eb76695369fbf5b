package grab

import (
	"fmt"
	"time"

	"github.com/kirikodevv/grabctx/internal/parser"
	"github.com/kirikodevv/grabctx/internal/pkgenv"
)

// Title heads every report.
const Title = "Grab Context"

// Kind classifies the terminal outcome of an invocation.
type Kind int

const (
	KindSuccess Kind = iota
	KindNoFunctionAtCursor
	KindLanguageSupportUnavailable
	KindNoManifestFound
	KindNoPackageManagerResolved
	KindBootstrapFailed
	KindPathNotUnderManifest
	KindExecutableMissing
	KindProcessLaunchFailure
	KindProcessWaitInterrupted
	KindNonZeroExit
	KindInvalidInvocation
)

var kindNames = map[Kind]string{
	KindSuccess:                    "success",
	KindNoFunctionAtCursor:         "no-function-at-cursor",
	KindLanguageSupportUnavailable: "language-support-unavailable",
	KindNoManifestFound:            "no-manifest-found",
	KindNoPackageManagerResolved:   "no-package-manager-resolved",
	KindBootstrapFailed:            "bootstrap-failed",
	KindPathNotUnderManifest:       "path-not-under-manifest",
	KindExecutableMissing:          "executable-missing",
	KindProcessLaunchFailure:       "process-launch-failure",
	KindProcessWaitInterrupted:     "process-wait-interrupted",
	KindNonZeroExit:                "non-zero-exit",
	KindInvalidInvocation:          "invalid-invocation",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText renders the kind by name in JSON output.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Severity is how a report is presented.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	default:
		return "error"
	}
}

// MarshalText renders the severity by name in JSON output.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Severity maps the kind onto its presentation level.
func (k Kind) Severity() Severity {
	switch k {
	case KindSuccess:
		return SeverityInfo
	case KindNoFunctionAtCursor:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// Outcome is the single terminal result of an invocation.
type Outcome struct {
	InvocationID string              `json:"invocation_id"`
	Kind         Kind                `json:"kind"`
	Severity     Severity            `json:"severity"`
	Title        string              `json:"title"`
	Message      string              `json:"message"`
	Function     *parser.Function    `json:"function,omitempty"`
	Environment  *pkgenv.Environment `json:"environment,omitempty"`
	Bootstrap    string              `json:"bootstrap,omitempty"`
	Command      string              `json:"command,omitempty"`
	WorkDir      string              `json:"work_dir,omitempty"`
	ExitCode     int                 `json:"exit_code"`
	Output       string              `json:"output,omitempty"`
	Duration     time.Duration       `json:"duration_ns"`
	Err          error               `json:"-"`
}

// Success reports whether the invocation delivered the context.
func (o *Outcome) Success() bool {
	return o != nil && o.Kind == KindSuccess
}
