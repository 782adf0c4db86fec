package cluster

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProfile() Profile {
	return Profile{
		Host:               "hpc.example.edu",
		User:               "jdoe",
		DefaultPartition:   "rosa.p",
		DefaultNtasks:      1,
		DefaultCPUsPerTask: 8,
	}
}

func TestSrunCommandDefaults(t *testing.T) {
	got := srunCommand(testProfile(), Overrides{}, false)
	assert.Equal(t, "srun -p rosa.p --ntasks=1 --cpus-per-task=8", got)
}

func TestSrunCommandInteractive(t *testing.T) {
	got := srunCommand(testProfile(), Overrides{}, true)
	assert.True(t, strings.HasPrefix(got, "srun --pty "))
}

func TestSrunCommandOverrides(t *testing.T) {
	p := testProfile()
	p.Account = "lab-default"
	p.DefaultTime = "01:00:00"

	got := srunCommand(p, Overrides{
		Partition:   "gpu.p",
		Ntasks:      2,
		CPUsPerTask: 16,
		Time:        "04:00:00",
		Mem:         "32G",
		GPUs:        "gpu:2",
	}, false)

	assert.Contains(t, got, "-p gpu.p")
	assert.Contains(t, got, "--ntasks=2")
	assert.Contains(t, got, "--cpus-per-task=16")
	assert.Contains(t, got, "--account lab-default")
	assert.Contains(t, got, "--time 04:00:00")
	assert.Contains(t, got, "--mem 32G")
	assert.Contains(t, got, "--gpus gpu:2")
}

func TestRemoteRunCommandOrder(t *testing.T) {
	p := testProfile()
	p.PreCommands = []string{"module load slurm-tools", "source .venv/bin/activate"}

	got := remoteRunCommand(p, Overrides{}, "python train.py", "/scratch/jdoe/proj")

	// cd first, then the setup commands, then srun.
	assert.Equal(t,
		"cd /scratch/jdoe/proj && module load slurm-tools && source .venv/bin/activate && "+
			"srun -p rosa.p --ntasks=1 --cpus-per-task=8 python train.py",
		got)
}

func TestRemoteRunCommandNoWorkdir(t *testing.T) {
	p := testProfile()
	p.PreCommands = []string{"module load ollama"}

	got := remoteRunCommand(p, Overrides{}, "nvidia-smi", "")
	assert.Equal(t, "module load ollama && srun -p rosa.p --ntasks=1 --cpus-per-task=8 nvidia-smi", got)
}

func TestSbatchHeader(t *testing.T) {
	p := testProfile()
	p.Mem = "16G"

	header := sbatchHeader(p, Overrides{Time: "08:00:00"})
	assert.Equal(t, []string{
		"#SBATCH -p rosa.p",
		"#SBATCH --ntasks=1",
		"#SBATCH --cpus-per-task=8",
		"#SBATCH --time=08:00:00",
		"#SBATCH --mem=16G",
	}, header)
}

func TestRenderBootstrap(t *testing.T) {
	p := testProfile()
	p.PreCommands = []string{"module load ollama"}

	script, err := renderBootstrap(p, Overrides{}, AppOptions{
		Port:  11434,
		Model: "gpt-oss:20b",
	})
	require.NoError(t, err)

	assert.Contains(t, script, `ssh -L 11434:$NODE:11434 jdoe@hpc.example.edu`)
	assert.Contains(t, script, "module load ollama")
	assert.Contains(t, script, "tmux new -d -s ollama")
	assert.Contains(t, script, "nohup ollama serve")
	assert.Contains(t, script, `MODEL="gpt-oss:20b"`)
	assert.Contains(t, script, "ollama pull")
	assert.Contains(t, script, "export OLLAMA_HOST=http://127.0.0.1:11434")
	assert.Contains(t, script, "exec bash")
	assert.NotContains(t, script, "cd ''")
}

func TestRenderBootstrapWorkdir(t *testing.T) {
	script, err := renderBootstrap(testProfile(), Overrides{}, AppOptions{
		Port:    11434,
		Workdir: "/scratch/jdoe/run dir",
	})
	require.NoError(t, err)
	assert.Contains(t, script, `cd '/scratch/jdoe/run dir'`)
}

func TestRenderBatch(t *testing.T) {
	p := testProfile()
	p.PreCommands = []string{"module load ollama"}

	script, err := renderBatch(p, Overrides{}, AppOptions{
		Port:  11500,
		Model: "llama3.1:8b",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(script, "#!/bin/bash\n"))
	assert.Contains(t, script, "#SBATCH -p rosa.p")
	assert.Contains(t, script, "module load ollama")
	assert.Contains(t, script, "export OLLAMA_HOST=0.0.0.0:11500")
	assert.Contains(t, script, "ollama serve &")
	assert.Contains(t, script, "ollama pull llama3.1:8b")
	assert.Contains(t, script, "wait $SERVER_PID")
}

func TestRenderBatchSkipsModelWhenUnset(t *testing.T) {
	script, err := renderBatch(testProfile(), Overrides{}, AppOptions{Port: 11434})
	require.NoError(t, err)
	assert.NotContains(t, script, "ollama pull")
}

func TestQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "''"},
		{"plain", "plain"},
		{"rosa.p", "rosa.p"},
		{"has space", "'has space'"},
		{"it's", `'it'"'"'s'`},
		{"$HOME", "'$HOME'"},
		{"a;b", "'a;b'"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, quote(tt.in), tt.in)
	}
}

func TestQuoteCommand(t *testing.T) {
	got := QuoteCommand([]string{"echo", "hello world", "$USER"})
	assert.Equal(t, `echo 'hello world' '$USER'`, got)
}

func TestPrependPreCommands(t *testing.T) {
	assert.Equal(t, "run", prependPreCommands(nil, "run"))
	assert.Equal(t, "a && b && run", prependPreCommands([]string{"a", "b"}, "run"))
}
