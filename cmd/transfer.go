package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/stormalone/reedline/pkg/config"
	"github.com/stormalone/reedline/pkg/history"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	exportOpts   searchOptions
	exportFormat string
	exportOutput string
	importFormat string
)

// exportCmd writes items to a file
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export history items as JSON or YAML",
	Long: `Export matching history items, oldest first, as JSON or YAML. The shell
context is written as raw JSON text so it survives any round trip.

Examples:
  rlhist export > history.json
  rlhist export --format yaml --session 4 --output session4.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd, func(ctx context.Context, _ *config.Config, h *Store) error {
			out := cmd.OutOrStdout()
			if exportOutput != "" && exportOutput != "-" {
				f, err := os.Create(exportOutput)
				if err != nil {
					return errors.Wrapf(err, "failed to create %s", exportOutput)
				}
				defer f.Close()
				out = f
			}
			return runExport(ctx, out, h, &exportOpts, exportFormat)
		})
	},
}

// importCmd reads items from a file
var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import history items from JSON or YAML",
	Long: `Import items previously written by 'rlhist export'. Items receive new ids;
session ids are kept. Nothing is imported if any record is invalid.

Use "-" to read from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd, func(ctx context.Context, _ *config.Config, h *Store) error {
			in := cmd.InOrStdin()
			format := importFormat
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return errors.Wrapf(err, "failed to open %s", args[0])
				}
				defer f.Close()
				in = f
				if format == "" {
					format = formatFromPath(args[0])
				}
			}
			return runImport(ctx, cmd.OutOrStdout(), h, in, format)
		})
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)

	exportOpts.addFlags(exportCmd.Flags(), false, 0)
	exportCmd.Flags().StringVar(&exportFormat, "format", formatJSON, "Output format: json or yaml")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to a file instead of stdout")

	importCmd.Flags().StringVar(&importFormat, "format", "", "Input format: json or yaml (default: from file extension)")
}

// formatFromPath guesses the format from a file extension.
func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML
	default:
		return formatJSON
	}
}

func runExport(ctx context.Context, out io.Writer, h *Store, opts *searchOptions, format string) error {
	if format != formatJSON && format != formatYAML {
		return errors.Newf("invalid format %q: must be one of: json, yaml", format)
	}

	opts.forward = true
	q, err := opts.query(ctx, h, "")
	if err != nil {
		return err
	}

	records, err := h.Export(ctx, q)
	if err != nil {
		return err
	}

	if format == formatYAML {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return errors.Wrap(err, "failed to write YAML")
		}
		return enc.Close()
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(records), "failed to write JSON")
}

func runImport(ctx context.Context, out io.Writer, h *Store, in io.Reader, format string) error {
	if format == "" {
		format = formatJSON
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return errors.Wrap(err, "failed to read input")
	}

	var records []history.Record
	switch format {
	case formatJSON:
		err = json.Unmarshal(data, &records)
	case formatYAML:
		err = yaml.Unmarshal(data, &records)
	default:
		return errors.Newf("invalid format %q: must be one of: json, yaml", format)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to parse %s input", format)
	}

	n, err := h.Import(ctx, records)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Imported %d items\n", n)
	return nil
}
