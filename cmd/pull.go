package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/osschat/termchat/internal/ollama"
)

var pullCmd = &cobra.Command{
	Use:   "pull <model>",
	Short: "Download a model onto the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		host, _ := cmd.Flags().GetString("host")
		client, err := ollama.NewClient(host)
		if err != nil {
			return err
		}

		name := args[0]
		fmt.Printf("Pulling %s from %s\n", name, client.Base())

		lastStatus := ""
		err = client.Pull(cmd.Context(), name, func(p ollama.PullProgress) error {
			if p.Percent() >= 0 {
				fmt.Printf("\r%s: %.0f%%    ", p.Status, p.Percent())
				lastStatus = p.Status
				return nil
			}
			if p.Status != lastStatus {
				if lastStatus != "" {
					fmt.Println()
				}
				fmt.Print(p.Status)
				lastStatus = p.Status
			}
			return nil
		})
		fmt.Println()
		if err != nil {
			return err
		}
		fmt.Printf("Pulled %s\n", name)
		return nil
	},
}
