package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/snapgrab/snapgrab/internal/display"
)

var displaysCmd = &cobra.Command{
	Use:   "displays",
	Short: "List active displays",
	Long: `List the active displays and their bounds.

Index 0 is the primary display. Origins are in virtual screen
coordinates, so secondary displays can sit at negative offsets.`,
	Example: `  # List displays in table format (default)
  snapgrab displays

  # List displays in JSON format
  snapgrab displays --format json`,
	RunE: runDisplays,
}

var displaysFormat string

func init() {
	rootCmd.AddCommand(displaysCmd)

	displaysCmd.Flags().StringVarP(&displaysFormat, "format", "f", "table", "output format (table or json)")
}

func runDisplays(cmd *cobra.Command, args []string) error {
	displays, err := display.List()
	if err != nil {
		return fmt.Errorf("failed to enumerate displays: %w", err)
	}

	switch displaysFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(displays)
	case "table":
		return printDisplaysTable(displays)
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", displaysFormat)
	}
}

func printDisplaysTable(displays []display.Info) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "INDEX\tORIGIN\tSIZE\tPRIMARY")
	fmt.Fprintln(w, "-----\t------\t----\t-------")

	for _, d := range displays {
		primary := "No"
		if d.Primary {
			primary = "Yes"
		}
		fmt.Fprintf(w, "%d\t(%d, %d)\t%dx%d\t%s\n", d.Index, d.X, d.Y, d.Width, d.Height, primary)
	}

	return nil
}
