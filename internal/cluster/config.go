// Package cluster submits the chat stack to a Slurm cluster over SSH:
// profile config, ssh invocation and srun/sbatch composition.
package cluster

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the clusters file location when set.
const EnvConfigPath = "CLUSTERS_FILE"

// DefaultConfigName is looked up in the working directory and next to the
// executable.
const DefaultConfigName = "clusters.yml"

var ErrProfileNotFound = errors.New("cluster profile not found")

// Profile is one named cluster in the config file. Defaults apply when the
// CLI passes no override.
type Profile struct {
	Host               string   `json:"host" yaml:"host" toml:"host"`
	User               string   `json:"user" yaml:"user" toml:"user"`
	DefaultPartition   string   `json:"default_partition" yaml:"default_partition" toml:"default_partition"`
	DefaultNtasks      int      `json:"default_ntasks" yaml:"default_ntasks" toml:"default_ntasks"`
	DefaultCPUsPerTask int      `json:"default_cpus_per_task" yaml:"default_cpus_per_task" toml:"default_cpus_per_task"`
	Account            string   `json:"account,omitempty" yaml:"account" toml:"account,omitempty"`
	DefaultTime        string   `json:"default_time,omitempty" yaml:"default_time" toml:"default_time,omitempty"`
	Mem                string   `json:"mem,omitempty" yaml:"mem" toml:"mem,omitempty"`
	GPUs               string   `json:"gpus,omitempty" yaml:"gpus" toml:"gpus,omitempty"`
	SSHKey             string   `json:"ssh_key,omitempty" yaml:"ssh_key" toml:"ssh_key,omitempty"`
	Workdir            string   `json:"workdir,omitempty" yaml:"workdir" toml:"workdir,omitempty"`
	PreCommands        []string `json:"pre_commands,omitempty" yaml:"pre_commands" toml:"pre_commands,omitempty"`
}

type configFile struct {
	Clusters map[string]Profile `json:"clusters" yaml:"clusters" toml:"clusters"`
}

// Locate finds the clusters file: $CLUSTERS_FILE, then ./clusters.yml, then a
// clusters.yml next to the executable.
func Locate() (string, error) {
	if env := os.Getenv(EnvConfigPath); env != "" {
		return expand(env), nil
	}
	if _, err := os.Stat(DefaultConfigName); err == nil {
		return DefaultConfigName, nil
	}
	exe, err := os.Executable()
	if err == nil {
		beside := filepath.Join(filepath.Dir(exe), DefaultConfigName)
		if _, err := os.Stat(beside); err == nil {
			return beside, nil
		}
	}
	return "", fmt.Errorf("%s not found: set %s or add %s to the working directory",
		DefaultConfigName, EnvConfigPath, DefaultConfigName)
}

// Load reads the named profile from the config file. The decoder is picked by
// file extension (.yml/.yaml, .json, .toml).
func Load(path, name string) (Profile, error) {
	var file configFile

	b, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("reading clusters config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &file)
	case ".json":
		err = json.Unmarshal(b, &file)
	case ".toml":
		err = toml.Unmarshal(b, &file)
	default:
		return Profile{}, fmt.Errorf("unsupported clusters config extension: %s", ext)
	}
	if err != nil {
		return Profile{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	profile, ok := file.Clusters[name]
	if !ok {
		return Profile{}, fmt.Errorf("cluster %q in %s: %w", name, path, ErrProfileNotFound)
	}

	profile.expandAll()
	if err := profile.validate(name); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// expand resolves ~ and $VAR the way a shell would, so profiles may say
// ssh_key: ~/.ssh/id_ed25519.
func expand(s string) string {
	if s == "~" || strings.HasPrefix(s, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			s = home + s[1:]
		}
	}
	return os.ExpandEnv(s)
}

func (p *Profile) expandAll() {
	p.Host = expand(p.Host)
	p.User = expand(p.User)
	p.SSHKey = expand(p.SSHKey)
	p.Workdir = expand(p.Workdir)
	for i, cmd := range p.PreCommands {
		p.PreCommands[i] = expand(cmd)
	}
}

func (p *Profile) validate(name string) error {
	var missing []string
	if p.Host == "" {
		missing = append(missing, "host")
	}
	if p.User == "" {
		missing = append(missing, "user")
	}
	if p.DefaultPartition == "" {
		missing = append(missing, "default_partition")
	}
	if p.DefaultNtasks <= 0 {
		missing = append(missing, "default_ntasks")
	}
	if p.DefaultCPUsPerTask <= 0 {
		missing = append(missing, "default_cpus_per_task")
	}
	if len(missing) > 0 {
		return fmt.Errorf("cluster %q missing required keys: %s", name, strings.Join(missing, ", "))
	}
	return nil
}
