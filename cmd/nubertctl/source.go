package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/xuio/nubert-hass/internal/session"
)

var (
	sourceList bool
	sourceCode string
)

var sourceCmd = &cobra.Command{
	Use:   "source <name>",
	Short: "Switch the input source",
	Long: `Switch the input source by name, e.g. 'source AUX' or 'source "COAX 1"'.

Names are matched case-insensitively with spaces, dashes and underscores
ignored. Use --list to print the sources the connected device offers, or
--code to switch by the raw protocol code instead of a name.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSource,
}

func init() {
	addDeviceFlags(sourceCmd)
	sourceCmd.Flags().BoolVar(&sourceList, "list", false, "List the source names of the connected device")
	sourceCmd.Flags().StringVar(&sourceCode, "code", "", "Switch by raw source code, e.g. 0x04")
}

func runSource(cmd *cobra.Command, args []string) error {
	if !sourceList && sourceCode == "" && len(args) == 0 {
		return fmt.Errorf("a source name is required (or use --list / --code)")
	}
	if sourceCode != "" && len(args) > 0 {
		return fmt.Errorf("give either a source name or --code, not both")
	}

	var code byte
	if sourceCode != "" {
		parsed, err := parseSourceCode(sourceCode)
		if err != nil {
			return err
		}
		code = parsed
	}

	return withSession(cmd, func(ctx context.Context, sess *session.Session) error {
		if sourceList {
			// The source table depends on the profile, known after connect.
			if err := sess.EnsureConnected(ctx); err != nil {
				return err
			}
			for _, name := range sess.Profile().SourceNames() {
				fmt.Println(name)
			}
			return nil
		}

		if sourceCode != "" {
			return sess.SelectSourceCode(ctx, code)
		}
		return sess.SelectSource(ctx, args[0])
	})
}

// parseSourceCode accepts decimal and 0x-prefixed hex.
func parseSourceCode(arg string) (byte, error) {
	v, err := strconv.ParseUint(arg, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid source code %q: expected a byte like 4 or 0x04", arg)
	}
	return byte(v), nil
}
