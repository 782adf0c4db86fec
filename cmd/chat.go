package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/osschat/termchat/internal/chat"
	"github.com/osschat/termchat/internal/logger"
	"github.com/osschat/termchat/internal/ollama"
	"github.com/osschat/termchat/internal/ui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat UI",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().String("model", "gpt-oss:20b", "model to chat with")
	chatCmd.Flags().Float64("temp", 1.0, "sampling temperature (0..2)")
	chatCmd.Flags().String("effort", "medium", "reasoning effort: low, medium or high")
	chatCmd.Flags().String("system", "", "system prompt (default picked by --effort)")
	chatCmd.Flags().Bool("show-reasoning", false, "stream model reasoning into the transcript")
	chatCmd.Flags().Bool("dev", false, "show the debug console")
	chatCmd.Flags().String("log-path", "", "directory for the session log file")
}

func runChat(cmd *cobra.Command, args []string) error {
	host, _ := cmd.Flags().GetString("host")
	model, _ := cmd.Flags().GetString("model")
	temp, _ := cmd.Flags().GetFloat64("temp")
	effortName, _ := cmd.Flags().GetString("effort")
	system, _ := cmd.Flags().GetString("system")
	showReasoning, _ := cmd.Flags().GetBool("show-reasoning")
	dev, _ := cmd.Flags().GetBool("dev")
	logPath, _ := cmd.Flags().GetString("log-path")

	effort, err := chat.ParseEffort(effortName)
	if err != nil {
		return err
	}
	if temp < 0 || temp > 2 {
		return fmt.Errorf("temperature %v out of range (0..2)", temp)
	}

	client, err := ollama.NewClient(host)
	if err != nil {
		return err
	}

	// Probe before taking over the terminal so a missing server or model is
	// a plain error message, not a broken UI.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Version(ctx); err != nil {
		return err
	}
	ok, err := client.Has(ctx, model)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("model %q is not installed on %s; run `termchat pull %s` first", model, client.Base(), model)
	}

	ui.Init(ui.Options{Dev: dev, ShowReasoning: showReasoning})
	if err := logger.Init(dev, logPath, ui.DebugConsole()); err != nil {
		return err
	}
	defer logger.Close()

	session := chat.NewSession(client, model, system)
	session.SetTemperature(temp)
	session.SetEffort(effort)

	return ui.Run(session, client)
}
