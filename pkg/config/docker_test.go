package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveLoopback(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"localhost", "host.docker.internal"},
		{"127.0.0.1", "host.docker.internal"},
		{"::1", "host.docker.internal"},
		{"mydb.example.com", "mydb.example.com"},
		{"192.168.1.100", "192.168.1.100"},
		{"host.docker.internal", "host.docker.internal"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, resolveLoopback(tt.input), "input %q", tt.input)
	}
}

func TestResolveHostForDocker_NonLoopbackUnchanged(t *testing.T) {
	// Non-loopback hosts are never rewritten, inside or outside a container.
	assert.Equal(t, "sql.internal", ResolveHostForDocker("sql.internal"))
}
