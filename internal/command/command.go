// Package command composes the shell command lines the pipeline runs.
package command

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kirikodevv/grabctx/internal/pkgenv"
	"mvdan.cc/sh/v3/syntax"
)

// RunScript is the helper package script invoked for every extraction.
const RunScript = "start"

var (
	// ErrPathNotUnderManifest is returned when the active file does not live
	// below the manifest directory.
	ErrPathNotUnderManifest = errors.New("file is not under the manifest directory")
	// ErrNoManager is returned when a command is built for an environment
	// without a resolved package manager.
	ErrNoManager = errors.New("no package manager resolved")
	// ErrUnquotable is returned for arguments no POSIX shell word can carry,
	// which means arguments containing a NUL byte.
	ErrUnquotable = errors.New("argument cannot be quoted for a POSIX shell")
)

// Spec is a fully composed helper invocation.
type Spec struct {
	Manager    pkgenv.Manager `json:"manager"`
	Subcommand string         `json:"subcommand"`
	WorkDir    string         `json:"work_dir"`
	Args       []string       `json:"args"`

	line string
}

// Line returns the shell command line for the spec.
func (s *Spec) Line() string {
	return s.line
}

// String implements fmt.Stringer.
func (s *Spec) String() string {
	return s.line
}

// Relative strips manifestDir and one separator from file, so that
// filepath.Join(manifestDir, rel) reproduces file. For any manifestDir other
// than the filesystem root, manifestDir + separator + rel does too; at the
// root the separator is already part of manifestDir.
func Relative(manifestDir, file string) (string, error) {
	if manifestDir == "" || file == "" {
		return "", fmt.Errorf("%w: empty path", ErrPathNotUnderManifest)
	}

	prefix := manifestDir
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	rel, ok := strings.CutPrefix(file, prefix)
	if !ok || rel == "" {
		return "", fmt.Errorf("%w: %s is not inside %s", ErrPathNotUnderManifest, file, manifestDir)
	}
	return rel, nil
}

// Build composes the helper invocation for functionName in file. workDir is
// the helper package's install directory, where the command runs.
func Build(env *pkgenv.Environment, file, functionName, workDir string) (*Spec, error) {
	if !env.HasManager() {
		return nil, ErrNoManager
	}
	rel, err := Relative(env.ManifestDir, file)
	if err != nil {
		return nil, err
	}

	spec := &Spec{
		Manager:    env.Manager,
		Subcommand: RunScript,
		WorkDir:    workDir,
		Args:       []string{env.ManifestDir, rel, functionName},
	}

	quoted, err := quoteAll(spec.Args)
	if err != nil {
		return nil, err
	}
	// The two-space separator is part of the established invocation format.
	spec.line = string(spec.Manager) + " run  " + spec.Subcommand + " " + strings.Join(quoted, " ")
	return spec, nil
}

// InstallLine returns the command that adds pkg as a dev dependency. The
// workspace-root flag only exists for yarn and is dropped for npm.
func InstallLine(manager pkgenv.Manager, pkg string, ignoreWorkspaceRoot bool) (string, error) {
	quoted, err := quoteAll([]string{pkg})
	if err != nil {
		return "", err
	}

	switch manager {
	case pkgenv.ManagerYarn:
		parts := []string{"yarn", "add"}
		if ignoreWorkspaceRoot {
			parts = append(parts, "--ignore-workspace-root-check")
		}
		parts = append(parts, "--dev", quoted[0])
		return strings.Join(parts, " "), nil
	case pkgenv.ManagerNpm:
		return "npm install --save-dev " + quoted[0], nil
	}
	return "", ErrNoManager
}

// quoteAll quotes each argument as one POSIX shell word. syntax.Quote refuses
// non-printable runes and invalid UTF-8; those fall back to single quotes,
// which carry every byte but NUL.
func quoteAll(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if strings.ContainsRune(arg, 0) {
			return nil, fmt.Errorf("%w: %q contains a NUL byte", ErrUnquotable, arg)
		}
		quoted, err := syntax.Quote(arg, syntax.LangPOSIX)
		if err != nil {
			var quoteErr *syntax.QuoteError
			if !errors.As(err, &quoteErr) {
				return nil, fmt.Errorf("%w: %q: %w", ErrUnquotable, arg, err)
			}
			quoted = singleQuote(arg)
		}
		out = append(out, quoted)
	}
	return out, nil
}

func singleQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
