package flagx

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestFilter(t *testing.T) {
	valued := []string{"-a", "-m", "-c", "--config"}
	boolean := []string{"-revisions", "-insecure"}

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"separate value", []string{"-c", "conf.json", "-x", "1"}, []string{"-c", "conf.json"}},
		{"equals form", []string{"--config=alt.json", "-x", "1"}, []string{"--config=alt.json"}},
		{"equals value that looks like a flag", []string{"--config=--weird.json"}, []string{"--config=--weird.json"}},
		{"unknown flags and positionals dropped", []string{"-x", "1", "--y=2", "positional"}, []string{}},
		{"dangling flag kept", []string{"-c"}, []string{"-c"}},
		{"next flag is not a value", []string{"-c", "-a", ":8080"}, []string{"-c", "-a", ":8080"}},
		{"order preserved", []string{"-m", "content.yaml", "-a", ":8080", "-m", "other.yaml"}, []string{"-m", "content.yaml", "-a", ":8080", "-m", "other.yaml"}},
		{"boolean does not eat positional", []string{"-revisions", "positional", "-a", ":80"}, []string{"-revisions", "-a", ":80"}},
		{"boolean equals form", []string{"-insecure=false"}, []string{"-insecure=false"}},
		{"stops at terminator", []string{"-a", ":80", "--", "-m", "x.yaml"}, []string{"-a", ":80"}},
		{"empty", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Filter(tt.args, valued, boolean)); diff != "" {
				t.Errorf("Filter() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilterArgs_TreatsEverythingAsValued(t *testing.T) {
	got := FilterArgs([]string{"-revisions", "yes", "-z"}, []string{"-revisions"})
	assert.Equal(t, []string{"-revisions", "yes"}, got)
}

func TestConfigFile(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"short", []string{"-c", "/etc/guest-entries.json"}, "/etc/guest-entries.json"},
		{"long", []string{"-config", "/path/long.json"}, "/path/long.json"},
		{"equals form among server flags", []string{"--config=/path/eq.json", "-a", ":8080"}, "/path/eq.json"},
		{"absent", []string{"-m", "model.yaml"}, ""},
		{"last wins", []string{"-c", "/path/1.json", "-config", "/path/2.json"}, "/path/2.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConfigFile(tt.args))
		})
	}
}
