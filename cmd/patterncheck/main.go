// Command patterncheck checks a webhook pattern file offline: which lines
// compile, and whether a given subject/body would trigger the webhook.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mailhook/internal/filter"
)

var (
	errInvalidPatterns = errors.New("pattern file contains invalid lines")
	errNoMatch         = errors.New("no pattern matched")
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "patterncheck",
		Short: "Check mailhook triggering patterns",
		Long: `patterncheck validates a file of triggering patterns (one regexp
per line, as entered in the admin settings) and tests it against a
sample email.

Example:
  patterncheck validate patterns.txt
  patterncheck match --subject "URGENT: disk full" patterns.txt
  cat patterns.txt | patterncheck match --body "db-1 is down" -`,
		SilenceUsage: true,
	}
	root.AddCommand(newValidateCmd(), newMatchCmd())
	return root
}

func newValidateCmd() *cobra.Command {
	var matchCase bool
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Report pattern lines that do not compile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readPatterns(cmd, args[0])
			if err != nil {
				return err
			}

			m := &filter.Matcher{MatchCase: matchCase}
			valid, invalid := m.Check(raw)
			out := cmd.OutOrStdout()
			for _, e := range invalid {
				fmt.Fprintf(out, "invalid %s\n", e)
			}
			fmt.Fprintf(out, "%d valid, %d invalid\n", len(filter.Lines(valid)), len(invalid))

			if len(invalid) > 0 {
				return errInvalidPatterns
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&matchCase, "match-case", false, "compile undelimited patterns case sensitively")
	return cmd
}

func newMatchCmd() *cobra.Command {
	var (
		subject   string
		body      string
		matchCase bool
	)
	cmd := &cobra.Command{
		Use:   "match <file>",
		Short: "Show which pattern line, if any, matches a subject or body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readPatterns(cmd, args[0])
			if err != nil {
				return err
			}

			m := &filter.Matcher{MatchCase: matchCase}
			if _, invalid := m.Check(raw); len(invalid) > 0 {
				for _, e := range invalid {
					fmt.Fprintf(cmd.ErrOrStderr(), "ignored %s\n", e)
				}
			}

			match, ok := m.FirstMatch(subject, body, raw)
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "no match")
				return errNoMatch
			}
			fmt.Fprintf(cmd.OutOrStdout(), "match: line %d matched %s: %s\n", match.Line, match.Field, match.Pattern)
			return nil
		},
	}
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "email subject")
	cmd.Flags().StringVarP(&body, "body", "b", "", "email body")
	cmd.Flags().BoolVar(&matchCase, "match-case", false, "compile undelimited patterns case sensitively")
	return cmd
}

// readPatterns reads path, or stdin when path is "-".
func readPatterns(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(raw), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read pattern file: %w", err)
	}
	return string(raw), nil
}
