package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouteArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"bare", []string{}, []string{"chat"}},
		{"flags only", []string{"--host", "remote:11434"}, []string{"chat", "--host", "remote:11434"}},
		{"chat flags only", []string{"--model", "llama3.1:8b"}, []string{"chat", "--model", "llama3.1:8b"}},
		{"subcommand", []string{"models"}, []string{"models"}},
		{"subcommand with flags", []string{"cluster", "--interactive"}, []string{"cluster", "--interactive"}},
		{"help flag", []string{"--help"}, []string{"--help"}},
		{"help command", []string{"help", "chat"}, []string{"help", "chat"}},
		{"completion", []string{"completion", "bash"}, []string{"completion", "bash"}},
		{"unknown command", []string{"nonsense"}, []string{"nonsense"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, routeArgs(tt.in))
		})
	}
}
