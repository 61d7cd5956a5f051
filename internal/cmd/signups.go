package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opposia/waitlist/internal/waitlist"
)

// Output formats for signups list.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
	formatCSV   = "csv"
)

var (
	signupsFormat string
	signupsOut    string
)

var signupsCmd = &cobra.Command{
	Use:   "signups",
	Short: "Inspect stored waitlist signups",
}

var signupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every stored signup",
	RunE: func(cmd *cobra.Command, args []string) error {
		format := strings.ToLower(strings.TrimSpace(signupsFormat))
		if !validSignupsFormat(format) {
			return fmt.Errorf("unsupported output format: %s (use table, json, yaml or csv)", signupsFormat)
		}

		signups, err := loadSignups(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if path := strings.TrimSpace(signupsOut); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("create %s: %w", path, err)
			}
			defer f.Close() // nolint:errcheck // close error surfaces on write
			out = f
		}
		return renderSignups(out, signups, format)
	},
}

var signupsCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of stored signups",
	RunE: func(cmd *cobra.Command, args []string) error {
		signups, err := loadSignups(cmd.Context())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), len(signups))
		return err
	},
}

func loadSignups(ctx context.Context) ([]waitlist.Signup, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	app, err := openStorage(ctx, cfg, nil)
	if err != nil {
		return nil, err
	}
	defer app.Close() // nolint:errcheck // read-only session

	return app.store.ListAll(ctx)
}

func validSignupsFormat(format string) bool {
	switch format {
	case formatTable, formatJSON, formatYAML, formatCSV:
		return true
	}
	return false
}

func renderSignups(w io.Writer, signups []waitlist.Signup, format string) error {
	if signups == nil {
		signups = []waitlist.Signup{}
	}

	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(signups)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(signups); err != nil {
			return err
		}
		return enc.Close()
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Email", "Signed up (UTC)", "Notified"})
	for i, s := range signups {
		t.AppendRow(table.Row{i + 1, s.Email, s.Timestamp, s.Notified})
	}

	if format == formatCSV {
		t.RenderCSV()
		return nil
	}

	t.SetStyle(table.StyleRounded)
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d signups", len(signups)), "", ""})
	t.Render()
	return nil
}

func init() {
	signupsListCmd.Flags().StringVarP(&signupsFormat, "format", "f", formatTable, "Output format: table|json|yaml|csv")
	signupsListCmd.Flags().StringVar(&signupsOut, "out", "", "Write output to a file (default stdout)")

	signupsCmd.AddCommand(signupsListCmd)
	signupsCmd.AddCommand(signupsCountCmd)
	rootCmd.AddCommand(signupsCmd)
}
