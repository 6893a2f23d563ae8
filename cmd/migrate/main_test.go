package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func envMap(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		env     map[string]string
		want    options
		wantErr string
	}{
		{
			name: "defaults to up with env dsn",
			env:  map[string]string{envDSN: " postgres://env "},
			want: options{direction: "up", dsn: "postgres://env"},
		},
		{
			name: "flag dsn wins over env",
			args: []string{"-direction=STATUS", "-dsn=postgres://flag"},
			env:  map[string]string{envDSN: "postgres://env"},
			want: options{direction: "status", dsn: "postgres://flag"},
		},
		{
			name: "down defaults to one step",
			args: []string{"-direction=down", "-dsn=postgres://flag"},
			want: options{direction: "down", steps: 1, dsn: "postgres://flag"},
		},
		{
			name: "up keeps explicit steps",
			args: []string{"-steps=2", "-dsn=postgres://flag"},
			want: options{direction: "up", steps: 2, dsn: "postgres://flag"},
		},
		{
			name:    "missing dsn",
			args:    []string{"-direction=status"},
			wantErr: envDSN,
		},
		{
			name:    "unsupported direction",
			args:    []string{"-direction=sideways", "-dsn=postgres://flag"},
			wantErr: "unsupported direction",
		},
		{
			name:    "negative steps",
			args:    []string{"-steps=-3", "-dsn=postgres://flag"},
			wantErr: "steps must be",
		},
		{
			name:    "unknown flag",
			args:    []string{"-force"},
			wantErr: "usage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseOptions(tt.args, envMap(tt.env))
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestRunMissingDSN(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"-direction=status"}, envMap(nil), &out)
	require.ErrorContains(t, err, envDSN)
	require.Empty(t, out.String())
}

func TestRunAgainstPostgres(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("POS_POSTGRES_TEST_DSN"))
	if dsn == "" {
		t.Skip("POS_POSTGRES_TEST_DSN is not set")
	}

	for _, direction := range []string{"up", "status", "down", "up"} {
		var out bytes.Buffer
		err := run([]string{"-direction=" + direction, "-dsn=" + dsn}, envMap(nil), &out)
		if err != nil && strings.Contains(err.Error(), "open postgres store") {
			t.Skipf("postgres is not available: %v", err)
		}
		require.NoError(t, err)
		require.Contains(t, out.String(), "migrate "+direction+" ok")
	}
}
