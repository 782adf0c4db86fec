package cluster

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/template"
)

// Overrides are the CLI flags that shadow a profile's defaults. Zero values
// mean "use the profile".
type Overrides struct {
	Partition   string
	Ntasks      int
	CPUsPerTask int
	Time        string
	Account     string
	Mem         string
	GPUs        string
}

type resolved struct {
	Partition   string
	Ntasks      int
	CPUsPerTask int
	Time        string
	Account     string
	Mem         string
	GPUs        string
}

func (o Overrides) apply(p Profile) resolved {
	r := resolved{
		Partition:   p.DefaultPartition,
		Ntasks:      p.DefaultNtasks,
		CPUsPerTask: p.DefaultCPUsPerTask,
		Time:        p.DefaultTime,
		Account:     p.Account,
		Mem:         p.Mem,
		GPUs:        p.GPUs,
	}
	if o.Partition != "" {
		r.Partition = o.Partition
	}
	if o.Ntasks > 0 {
		r.Ntasks = o.Ntasks
	}
	if o.CPUsPerTask > 0 {
		r.CPUsPerTask = o.CPUsPerTask
	}
	if o.Time != "" {
		r.Time = o.Time
	}
	if o.Account != "" {
		r.Account = o.Account
	}
	if o.Mem != "" {
		r.Mem = o.Mem
	}
	if o.GPUs != "" {
		r.GPUs = o.GPUs
	}
	return r
}

// srunCommand composes the srun invocation for the resolved allocation.
func srunCommand(p Profile, o Overrides, interactive bool) string {
	r := o.apply(p)

	parts := []string{"srun"}
	if interactive {
		parts = append(parts, "--pty")
	}
	parts = append(parts,
		"-p", quote(r.Partition),
		"--ntasks="+strconv.Itoa(r.Ntasks),
		"--cpus-per-task="+strconv.Itoa(r.CPUsPerTask),
	)
	if r.Account != "" {
		parts = append(parts, "--account", quote(r.Account))
	}
	if r.Time != "" {
		parts = append(parts, "--time", quote(r.Time))
	}
	if r.Mem != "" {
		parts = append(parts, "--mem", quote(r.Mem))
	}
	if r.GPUs != "" {
		parts = append(parts, "--gpus", quote(r.GPUs))
	}
	return strings.Join(parts, " ")
}

// sbatchHeader renders the #SBATCH directives for a batch script.
func sbatchHeader(p Profile, o Overrides) []string {
	r := o.apply(p)

	header := []string{
		"#SBATCH -p " + r.Partition,
		"#SBATCH --ntasks=" + strconv.Itoa(r.Ntasks),
		"#SBATCH --cpus-per-task=" + strconv.Itoa(r.CPUsPerTask),
	}
	if r.Account != "" {
		header = append(header, "#SBATCH --account="+r.Account)
	}
	if r.Time != "" {
		header = append(header, "#SBATCH --time="+r.Time)
	}
	if r.Mem != "" {
		header = append(header, "#SBATCH --mem="+r.Mem)
	}
	if r.GPUs != "" {
		header = append(header, "#SBATCH --gpus="+r.GPUs)
	}
	return header
}

// AppOptions describe the model-server job started on the cluster.
type AppOptions struct {
	// Port the Ollama server binds to; also the tunneled port.
	Port int
	// Model to ensure present with `ollama pull`; empty skips the pull.
	Model string
	// Workdir to cd into before launching; empty stays in $HOME.
	Workdir string
}

// OpenInteractiveShell allocates a compute node and drops into a shell on it.
func OpenInteractiveShell(ctx context.Context, p Profile, o Overrides) error {
	srun := srunCommand(p, o, true) + " bash"
	return sshRun(ctx, p, prependPreCommands(p.PreCommands, srun), true)
}

// remoteRunCommand composes the login-node command for a one-off run: change
// into the workdir first, then the profile's pre_commands, then srun. The
// pre_commands run after the cd so relative setup (venv activation, local
// module files) resolves against the workdir.
func remoteRunCommand(p Profile, o Overrides, command, workdir string) string {
	remote := prependPreCommands(p.PreCommands, srunCommand(p, o, false)+" "+command)
	if workdir != "" {
		remote = "cd " + quote(workdir) + " && " + remote
	}
	return remote
}

// RemoteRun executes a one-off command under srun on the cluster.
func RemoteRun(ctx context.Context, p Profile, o Overrides, command, workdir string) error {
	return sshRun(ctx, p, remoteRunCommand(p, o, command, workdir), false)
}

// bootstrapTmpl runs on the allocated compute node for interactive app
// sessions: report the node and tunnel line, start the model server, ensure
// the model, then hand the user a shell with OLLAMA_HOST exported.
var bootstrapTmpl = template.Must(template.New("bootstrap").Parse(`
set -e
echo "srun allocation successful."
NODE=$(hostname -s || hostname)
echo "Allocated node: $NODE"
echo
echo ">>> On your LOCAL machine, open another terminal and run this tunnel command:"
echo "ssh -L {{.Port}}:$NODE:{{.Port}} {{.User}}@{{.Host}}"
echo ">>> Then point the chat UI at the tunnel: termchat chat --host localhost:{{.Port}}"
echo
{{range .PreCommands}}{{.}}
{{end}}
if command -v tmux >/dev/null 2>&1; then
  if tmux has-session -t ollama 2>/dev/null; then
    echo "[bootstrap] tmux session 'ollama' already exists."
  else
    echo "[bootstrap] starting 'ollama serve' in tmux session 'ollama'..."
    tmux new -d -s ollama 'OLLAMA_HOST=0.0.0.0:{{.Port}} ollama serve'
    sleep 1
  fi
else
  echo "[bootstrap] tmux not found; starting 'ollama serve' in background via nohup..."
  OLLAMA_HOST=0.0.0.0:{{.Port}} nohup ollama serve > ~/ollama_server.log 2>&1 &
  sleep 1
fi

export OLLAMA_HOST=http://127.0.0.1:{{.Port}}

MODEL="{{.Model}}"
if [ -n "$MODEL" ]; then
  echo "[bootstrap] ensuring model '$MODEL' is available (pull if missing)..."
  if ! ollama show "$MODEL" >/dev/null 2>&1; then
    ollama pull "$MODEL"
  fi
fi
{{if .Workdir}}
cd {{.WorkdirQ}} || { echo "[bootstrap] ERROR: workdir not found: {{.Workdir}}"; pwd; ls -la; exit 2; }
{{end}}
echo "[bootstrap] model server ready on port {{.Port}} (node $NODE)."
echo "[bootstrap] run the chat UI here with: termchat chat"
echo "           (or tunnel from your local machine as printed above)"

exec bash
`))

// batchTmpl is the sbatch job script: start the model server on the compute
// node, ensure the model, and keep serving until the job ends.
var batchTmpl = template.Must(template.New("batch").Parse(`#!/bin/bash
{{range .Header}}{{.}}
{{end}}set -e
{{range .PreCommands}}{{.}}
{{end}}{{if .Workdir}}cd {{.WorkdirQ}}
{{end}}export OLLAMA_HOST=0.0.0.0:{{.Port}}
ollama serve &
SERVER_PID=$!
sleep 2
{{if .Model}}export OLLAMA_HOST=http://127.0.0.1:{{.Port}}
if ! ollama show {{.ModelQ}} >/dev/null 2>&1; then
  ollama pull {{.ModelQ}}
fi
{{end}}wait $SERVER_PID
`))

type scriptData struct {
	Port        int
	User        string
	Host        string
	Model       string
	ModelQ      string
	Workdir     string
	WorkdirQ    string
	Header      []string
	PreCommands []string
}

func newScriptData(p Profile, o Overrides, app AppOptions) scriptData {
	return scriptData{
		Port:        app.Port,
		User:        p.User,
		Host:        p.Host,
		Model:       app.Model,
		ModelQ:      quote(app.Model),
		Workdir:     app.Workdir,
		WorkdirQ:    quote(app.Workdir),
		Header:      sbatchHeader(p, o),
		PreCommands: p.PreCommands,
	}
}

func renderBootstrap(p Profile, o Overrides, app AppOptions) (string, error) {
	var sb strings.Builder
	if err := bootstrapTmpl.Execute(&sb, newScriptData(p, o, app)); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func renderBatch(p Profile, o Overrides, app AppOptions) (string, error) {
	var sb strings.Builder
	if err := batchTmpl.Execute(&sb, newScriptData(p, o, app)); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// OpenInteractiveApp allocates an interactive job and bootstraps the model
// server on the node, printing the tunnel instructions as it goes.
func OpenInteractiveApp(ctx context.Context, p Profile, o Overrides, app AppOptions) error {
	bootstrap, err := renderBootstrap(p, o, app)
	if err != nil {
		return err
	}
	srun := srunCommand(p, o, true) + " bash -lc " + quote(bootstrap)
	return sshRun(ctx, p, prependPreCommands(p.PreCommands, srun), true)
}

// SubmitApp writes the batch script on the login node and submits it with
// sbatch, printing the job id and tunnel hints.
func SubmitApp(ctx context.Context, p Profile, o Overrides, app AppOptions) error {
	script, err := renderBatch(p, o, app)
	if err != nil {
		return err
	}

	remote := fmt.Sprintf(`
JOBFILE=$(mktemp ollama_app.XXXXXX.sh)
cat <<'EOF' > $JOBFILE
%s
EOF
jid=$(sbatch --parsable "$JOBFILE")
echo "Submitted job $jid"
echo "Check status with: squeue -j $jid"
echo "Once RUNNING, find node with: squeue -h -j $jid -o %%R"
echo "Then tunnel locally: ssh -L %d:<node>:%d %s@%s"
echo "And point the chat UI at it: termchat chat --host localhost:%d"
`, script, app.Port, app.Port, p.User, p.Host, app.Port)

	return sshRun(ctx, p, remote, false)
}
