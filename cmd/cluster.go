package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/osschat/termchat/internal/cluster"
	"github.com/osschat/termchat/internal/logger"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster [flags] [-- command ...]",
	Short: "Run the model stack on a Slurm cluster over SSH",
	Long: `Run commands or the model-serving stack on an HPC cluster.

Profiles come from clusters.yml (or $CLUSTERS_FILE). Without --cluster the
trailing command runs locally. With --cluster, pick one mode:

  --interactive      open a shell on a compute node (srun --pty)
  --interactive-app  allocate a node, start ollama there and print the
                     ssh -L tunnel line for the chat UI
  --submit-app       sbatch a batch job that serves ollama on --port
  -- command ...     anything else runs under srun on the cluster`,
	RunE: runCluster,
}

func init() {
	f := clusterCmd.Flags()
	f.String("cluster", "", "cluster profile name from clusters.yml; omit for a local run")
	f.Bool("interactive", false, "open an interactive compute shell via Slurm")
	f.Bool("interactive-app", false, "allocate a job, start ollama and print tunnel instructions")
	f.Bool("submit-app", false, "submit a batch job that serves ollama")
	f.String("partition", "", "Slurm partition override")
	f.Int("ntasks", 0, "Slurm --ntasks override")
	f.Int("cpus-per-task", 0, "Slurm --cpus-per-task override")
	f.String("time", "", "Slurm --time override (e.g. 01:00:00)")
	f.String("account", "", "Slurm --account override")
	f.String("mem", "", "Slurm memory override (e.g. 8G)")
	f.String("gpus", "", "Slurm GPUs (e.g. gpu:1)")
	f.Int("port", 11434, "port the remote ollama server binds to")
	f.String("model", "", "model to ensure present on the node (e.g. gpt-oss:20b)")
	f.String("workdir", "", "remote working directory")
}

func collectOverrides(cmd *cobra.Command) cluster.Overrides {
	partition, _ := cmd.Flags().GetString("partition")
	ntasks, _ := cmd.Flags().GetInt("ntasks")
	cpus, _ := cmd.Flags().GetInt("cpus-per-task")
	timeLimit, _ := cmd.Flags().GetString("time")
	account, _ := cmd.Flags().GetString("account")
	mem, _ := cmd.Flags().GetString("mem")
	gpus, _ := cmd.Flags().GetString("gpus")

	return cluster.Overrides{
		Partition:   partition,
		Ntasks:      ntasks,
		CPUsPerTask: cpus,
		Time:        timeLimit,
		Account:     account,
		Mem:         mem,
		GPUs:        gpus,
	}
}

func runCluster(cmd *cobra.Command, args []string) error {
	dev := os.Getenv("TERMCHAT_DEBUG") != ""
	if err := logger.Init(dev, "", nil); err != nil {
		return err
	}

	name, _ := cmd.Flags().GetString("cluster")
	interactive, _ := cmd.Flags().GetBool("interactive")
	interactiveApp, _ := cmd.Flags().GetBool("interactive-app")
	submitApp, _ := cmd.Flags().GetBool("submit-app")
	port, _ := cmd.Flags().GetInt("port")
	model, _ := cmd.Flags().GetString("model")
	workdir, _ := cmd.Flags().GetString("workdir")

	if name == "" {
		return runLocal(args)
	}

	if interactiveApp && submitApp {
		return &exitError{code: 2, err: errors.New("choose only one of --interactive-app or --submit-app")}
	}

	path, err := cluster.Locate()
	if err != nil {
		return err
	}
	profile, err := cluster.Load(path, name)
	if err != nil {
		return fmt.Errorf("loading cluster %q: %w", name, err)
	}

	overrides := collectOverrides(cmd)
	if workdir == "" {
		workdir = profile.Workdir
	}
	app := cluster.AppOptions{Port: port, Model: model, Workdir: workdir}

	ctx := cmd.Context()
	switch {
	case interactiveApp:
		return cluster.OpenInteractiveApp(ctx, profile, overrides, app)
	case submitApp:
		return cluster.SubmitApp(ctx, profile, overrides, app)
	case interactive:
		return cluster.OpenInteractiveShell(ctx, profile, overrides)
	}

	if len(args) == 0 {
		return &exitError{code: 2, err: errors.New("no command specified for remote execution; pass it after --")}
	}
	return cluster.RemoteRun(ctx, profile, overrides, cluster.QuoteCommand(args), workdir)
}

func runLocal(args []string) error {
	if len(args) == 0 {
		return &exitError{code: 2, err: errors.New("no command provided; use --interactive/--interactive-app with --cluster, or pass a local command after --")}
	}

	proc := exec.Command(args[0], args[1:]...)
	proc.Stdin = os.Stdin
	proc.Stdout = os.Stdout
	proc.Stderr = os.Stderr

	err := proc.Run()
	if err == nil {
		return nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return &exitError{code: 127, err: fmt.Errorf("executable not found: %s", args[0])}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &exitError{code: exitErr.ExitCode(), err: fmt.Errorf("%s exited: %w", args[0], err)}
	}
	return err
}
