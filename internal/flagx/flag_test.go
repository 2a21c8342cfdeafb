package flagx

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		allowedFlags []string
		want         []string
	}{
		{
			name:         "short flag with separate value",
			args:         []string{"-c", "conf.json", "-a", "localhost"},
			allowedFlags: []string{"-c"},
			want:         []string{"-c", "conf.json"},
		},
		{
			name:         "equals form",
			args:         []string{"--config=alt.json", "-a", "localhost"},
			allowedFlags: []string{"--config"},
			want:         []string{"--config=alt.json"},
		},
		{
			name:         "unknown flags ignored",
			args:         []string{"-x", "1", "--y=2", "positional"},
			allowedFlags: []string{"-c"},
			want:         []string{},
		},
		{
			name:         "flag followed by another flag has no value",
			args:         []string{"-c", "-d", "dsn"},
			allowedFlags: []string{"-c"},
			want:         []string{"-c"},
		},
		{
			name:         "value with spaces stays one argument",
			args:         []string{"-rl-default", "200 per day", "-rl-default", "50 per hour"},
			allowedFlags: []string{"-rl-default"},
			want:         []string{"-rl-default", "200 per day", "-rl-default", "50 per hour"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowedFlags))
		})
	}
}

func TestConfigFileFlag(t *testing.T) {
	assert.Equal(t, "/etc/bank.json", ConfigFileFlag([]string{"-c", "/etc/bank.json"}))
	assert.Equal(t, "/etc/bank.json", ConfigFileFlag([]string{"-a", ":8080", "-config", "/etc/bank.json"}))
	assert.Equal(t, "b.json", ConfigFileFlag([]string{"-c", "a.json", "-config", "b.json"}))
	assert.Empty(t, ConfigFileFlag([]string{"-x", "1"}))
}

func TestStringList_ReplacesDefaultsOnFirstSet(t *testing.T) {
	values := []string{"200 per day", "50 per hour"}

	fs := flag.NewFlagSet("t", flag.ContinueOnError)
	fs.Var(NewStringList(&values), "l", "limits")

	require.NoError(t, fs.Parse([]string{"-l", "10 per minute", "-l", "100 per day"}))
	assert.Equal(t, []string{"10 per minute", "100 per day"}, values)
}

func TestStringList_KeepsDefaultsWhenUnset(t *testing.T) {
	values := []string{"200 per day"}

	fs := flag.NewFlagSet("t", flag.ContinueOnError)
	list := NewStringList(&values)
	fs.Var(list, "l", "limits")

	require.NoError(t, fs.Parse(nil))
	assert.Equal(t, []string{"200 per day"}, values)
	assert.Equal(t, "200 per day", list.String())
}

func TestPositional(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"command only", []string{"migrate"}, []string{"migrate"}},
		{"flag value skipped", []string{"-d", "postgres://x", "create-admin"}, []string{"create-admin"}},
		{"inline value", []string{"--config=conf.json", "migrate"}, []string{"migrate"}},
		{"bool flag", []string{"-insecure-cookie", "migrate"}, []string{"migrate"}},
		{"double dash", []string{"-d", "dsn", "--", "-weird"}, []string{"-weird"}},
		{"none", []string{"-l", "debug"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Positional(tt.args, []string{"-insecure-cookie"}))
		})
	}
}
