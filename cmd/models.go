package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/osschat/termchat/internal/ollama"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models installed on the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		host, _ := cmd.Flags().GetString("host")
		client, err := ollama.NewClient(host)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		models, err := client.ListModels(ctx)
		if err != nil {
			return err
		}

		if len(models) == 0 {
			fmt.Println("No models installed. Pull one with: termchat pull <model>")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSIZE\tPARAMS\tQUANT\tMODIFIED")
		for _, m := range models {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				m.Name,
				formatSize(m.Size),
				m.Details.ParameterSize,
				m.Details.QuantizationLevel,
				m.ModifiedAt.Format("2006-01-02 15:04"),
			)
		}
		return w.Flush()
	},
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
