package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ehr/medpaste/internal/config"
	"github.com/ehr/medpaste/internal/platform/clipboard"
)

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <regular|prn>",
		Short: "Parse a medication table from stdin or a file",
		Long: "Reads a tab-separated medication table copied from the EHR and prints the\n" +
			"composed medication text the sheet would receive on paste.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"regular", "prn"},
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			nowFlag, _ := cmd.Flags().GetString("now")
			tz, _ := cmd.Flags().GetString("tz")
			stats, _ := cmd.Flags().GetBool("stats")

			opts, err := parserOptions(nowFlag, tz)
			if err != nil {
				return err
			}

			in := cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			text, err := readClipboard(in)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			return runParse(cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], text, stats, opts...)
		},
	}
	cmd.Flags().StringP("file", "f", "", "Read the table from this file instead of stdin")
	cmd.Flags().String("now", "", "Evaluate the PRN 24h window at this RFC3339 instant")
	cmd.Flags().String("tz", "", "IANA zone for administration times without an offset (default: CLINICAL_TIMEZONE from config)")
	cmd.Flags().Bool("stats", false, "Print row and drop counts to stderr")
	return cmd
}

func parserOptions(nowFlag, tz string) ([]clipboard.Option, error) {
	var opts []clipboard.Option
	if nowFlag != "" {
		now, err := time.Parse(time.RFC3339, nowFlag)
		if err != nil {
			return nil, fmt.Errorf("--now: %w", err)
		}
		opts = append(opts, clipboard.WithClock(func() time.Time { return now }))
	}
	if tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("--tz: %w", err)
		}
		return append(opts, clipboard.WithLocation(loc)), nil
	}

	// Same source as serve: environment plus .env.
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return append(opts, clipboard.WithLocation(loc)), nil
}

// readClipboard decodes clipboard dumps. Windows tools often save the
// clipboard as UTF-16 with a BOM; anything without a BOM is read as UTF-8.
func readClipboard(r io.Reader) (string, error) {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	b, err := io.ReadAll(transform.NewReader(r, dec))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// runParse mirrors a paste into an empty field: the spliced value goes to
// out. A PRN table with nothing extracted falls back to the native paste,
// which is reported on errOut and echoes the input unchanged.
func runParse(out, errOut io.Writer, kind, text string, showStats bool, opts ...clipboard.Option) error {
	p := clipboard.New(opts...)

	var (
		dec clipboard.Decision
		st  clipboard.Stats
	)
	switch strings.ToLower(kind) {
	case "regular":
		var res clipboard.RegularResult
		dec, res = p.PasteRegular(clipboard.Field{}, text)
		st = res.Stats
	case "prn":
		var res clipboard.PrnResult
		dec, res = p.PastePRN(clipboard.Field{}, text)
		st = res.Stats
	default:
		return fmt.Errorf("unknown medication kind %q (want regular or prn)", kind)
	}

	value := dec.Value
	if dec.Action == clipboard.ActionNative {
		fmt.Fprintln(errOut, "no PRN medications extracted; native paste")
		value = text
	}
	if value != "" && !strings.HasSuffix(value, "\n") {
		value += "\n"
	}
	if _, err := io.WriteString(out, value); err != nil {
		return err
	}

	if showStats {
		printStats(errOut, dec, st)
	}
	return nil
}

func printStats(w io.Writer, dec clipboard.Decision, st clipboard.Stats) {
	fmt.Fprintf(w, "rows: %d  entries: %d  action: %s\n", st.Rows, dec.Entries, dec.Action)
	reasons := make([]string, 0, len(st.Dropped))
	for r, n := range st.Dropped {
		if n > 0 {
			reasons = append(reasons, string(r))
		}
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Fprintf(w, "  dropped %-16s %d\n", r, st.Dropped[clipboard.DropReason(r)])
	}
}
