package cli

import (
	"context"
	"fmt"

	"github.com/kirikodevv/grabctx/internal/fileutil"
	"github.com/kirikodevv/grabctx/internal/languages"
	"github.com/kirikodevv/grabctx/internal/parser"
	"github.com/spf13/cobra"
)

// LocateResult is the machine-readable output of the locate command.
type LocateResult struct {
	Mode     string           `json:"mode"`
	File     string           `json:"file"`
	Offset   int              `json:"offset"`
	Found    bool             `json:"found"`
	Function *parser.Function `json:"function,omitempty"`
}

func RunLocate(cmd *cobra.Command, args []string) error {
	target, err := resolveTarget(cmd, args[0])
	if err != nil {
		return err
	}
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	s, err := newSession(cmd, "")
	if err != nil {
		return err
	}
	registry, err := languages.NewRegistry(s.cfg.Languages)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	fn, err := registry.Locate(ctx, target.File, target.Content, target.Offset)
	if err != nil {
		return err
	}

	result := LocateResult{Mode: "locate", File: target.File, Offset: target.Offset, Found: fn != nil, Function: fn}
	if asJSON {
		return fileutil.PrintJSON(result)
	}
	if fn == nil {
		fmt.Printf("no function at %s offset %d\n", target.File, target.Offset)
		return &ExitError{Code: 1, Reported: true}
	}
	fmt.Printf("%s\t%s\t%s:%d\n", fn.Name, fn.Kind, target.File, fn.Line)
	return nil
}
