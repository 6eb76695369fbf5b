package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kirikodevv/grabctx/internal/parser"
	"github.com/spf13/cobra"
)

// ErrNoCursor is returned when a target names neither a line nor an offset.
var ErrNoCursor = errors.New("cursor position required: use file:line[:col] or --offset")

// Location is a parsed file[:line[:col]] argument.
type Location struct {
	File   string
	Line   int
	Column int
}

// Target is a resolved cursor position in a file on disk.
type Target struct {
	File    string
	Offset  int
	Content []byte
}

func resolveWorkingDirectory() (string, error) {
	rootPath, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return rootPath, nil
}

// ParseLocation splits up to two trailing numeric segments off query.
func ParseLocation(query string) (Location, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Location{}, fmt.Errorf("empty location")
	}

	parts := strings.Split(query, ":")
	numbers := make([]int, 0, 2)
	for len(parts) > 1 && len(numbers) < 2 {
		last := strings.TrimSpace(parts[len(parts)-1])
		n, err := strconv.Atoi(last)
		if err != nil {
			break
		}
		if n <= 0 {
			return Location{}, fmt.Errorf("invalid position %q in %q", last, query)
		}
		numbers = append(numbers, n)
		parts = parts[:len(parts)-1]
	}

	loc := Location{File: strings.Join(parts, ":")}
	if loc.File == "" {
		return Location{}, fmt.Errorf("missing file in %q", query)
	}
	switch len(numbers) {
	case 1:
		loc.Line = numbers[0]
	case 2:
		loc.Line, loc.Column = numbers[1], numbers[0]
	}
	return loc, nil
}

// resolveTarget turns a location argument plus an optional --offset flag into
// an absolute file and byte offset.
func resolveTarget(cmd *cobra.Command, arg string) (*Target, error) {
	loc, err := ParseLocation(arg)
	if err != nil {
		return nil, err
	}
	file, err := filepath.Abs(loc.File)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", loc.File, err)
	}
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}

	target := &Target{File: file, Content: content}
	if flagChanged(cmd, "offset") {
		offset, err := OptionalIntFlag(cmd, "offset", 0)
		if err != nil {
			return nil, err
		}
		if offset < 0 {
			return nil, fmt.Errorf("%w: %d", parser.ErrInvalidOffset, offset)
		}
		target.Offset = offset
		return target, nil
	}
	if loc.Line == 0 {
		return nil, ErrNoCursor
	}
	target.Offset, err = parser.OffsetForPosition(content, loc.Line, loc.Column)
	if err != nil {
		return nil, err
	}
	return target, nil
}
