package cluster

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/osschat/termchat/internal/logger"
)

// quote wraps s in single quotes for a POSIX shell, escaping embedded quotes.
func quote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n\"'`$\\&|;<>()*?[]#~%!{}") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// QuoteCommand renders an argv as a single shell-safe command string.
func QuoteCommand(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = quote(arg)
	}
	return strings.Join(quoted, " ")
}

// sshArgs builds the ssh argv for a profile. A configured identity file that
// exists enables BatchMode; otherwise ssh is left free to prompt. pty forces
// terminal allocation for interactive jobs.
func sshArgs(p Profile, pty bool) []string {
	args := []string{"ssh"}
	if p.SSHKey != "" {
		if _, err := os.Stat(p.SSHKey); err == nil {
			args = append(args, "-i", p.SSHKey, "-o", "BatchMode=yes")
		} else {
			args = append(args, "-o", "BatchMode=no",
				"-o", "PreferredAuthentications=publickey,keyboard-interactive,password")
		}
	} else {
		args = append(args, "-o", "BatchMode=no",
			"-o", "PreferredAuthentications=publickey,keyboard-interactive,password")
	}
	if pty {
		args = append(args, "-tt")
	}
	args = append(args, p.User+"@"+p.Host)
	return args
}

// sshRun executes cmd on the profile's login node under a login shell, with
// local stdio attached so the remote output streams straight through.
func sshRun(ctx context.Context, p Profile, remoteCmd string, pty bool) error {
	localLogger := logger.New("cluster ssh")

	args := append(sshArgs(p, pty), "bash -lc "+quote(remoteCmd))
	localLogger.Info("Running: ", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// prependPreCommands chains the profile's setup commands (module load, conda
// activate, ...) before cmd.
func prependPreCommands(pre []string, cmd string) string {
	if len(pre) == 0 {
		return cmd
	}
	return strings.Join(pre, " && ") + " && " + cmd
}
