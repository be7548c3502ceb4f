package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/coaxterm/pkg/codepage"
	"github.com/aretw0/coaxterm/pkg/domain"
)

func TestNormalizeArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "EmulatorFirst",
			in:   []string{"tn3270", "/dev/ttyACM0", "mainframe"},
			want: []string{"tn3270", "/dev/ttyACM0", "mainframe"},
		},
		{
			name: "InterfaceFirst",
			in:   []string{"/dev/ttyACM0", "tn3270", "LU1@mainframe:3270"},
			want: []string{"tn3270", "/dev/ttyACM0", "LU1@mainframe:3270"},
		},
		{
			name: "InterfaceFirstWithGlobalFlags",
			in:   []string{"--log-level", "debug", "/dev/ttyACM0", "vt100", "/bin/sh"},
			want: []string{"--log-level", "debug", "vt100", "/dev/ttyACM0", "/bin/sh"},
		},
		{
			name: "InlineFlagValue",
			in:   []string{"--baud=9600", "--no-banner", "/dev/ttyACM0", "tn3270", "host"},
			want: []string{"--baud=9600", "--no-banner", "tn3270", "/dev/ttyACM0", "host"},
		},
		{
			name: "Version",
			in:   []string{"version"},
			want: []string{"version"},
		},
		{
			name: "UnknownOrder",
			in:   []string{"/dev/ttyACM0", "mainframe"},
			want: []string{"/dev/ttyACM0", "mainframe"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeArgs(rootCmd, tt.in))
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitConfig, exitCode(&domain.ConfigError{Arg: "host", Reason: "invalid port"}))
	assert.Equal(t, exitConfig, exitCode(usageError(errors.New("accepts 2 arg(s)"))))
	assert.Equal(t, exitFatal, exitCode(domain.ErrUnsupportedEmulator))
	assert.Equal(t, exitFatal, exitCode(errors.New("failed to open interface")))
}

func TestCodepageFlag(t *testing.T) {
	var f codepageFlag
	require.NoError(t, f.Set("cp1140"))
	assert.Equal(t, "cp1140", f.String())
	assert.Equal(t, "codepage", f.Type())

	err := f.Set("klingon")
	assert.True(t, domain.IsConfigError(err))
	assert.Equal(t, "cp1140", f.String())
}

func TestExampleCodepages(t *testing.T) {
	var names []string
	for _, cmd := range rootCmd.Commands() {
		fields := strings.Fields(cmd.Example)
		for i, field := range fields {
			if field == "--codepage" && i+1 < len(fields) {
				names = append(names, fields[i+1])
			}
		}
	}
	require.NotEmpty(t, names)

	for _, name := range names {
		_, err := codepage.Validate(name)
		assert.NoError(t, err, name)
	}
}

func TestExecute_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"MissingTarget", []string{"tn3270", "/dev/ttyACM0"}},
		{"TooManyArgs", []string{"tn3270", "/dev/ttyACM0", "host", "23", "extra"}},
		{"BadCodepage", []string{"tn3270", "/dev/ttyACM0", "host", "--codepage", "klingon"}},
		{"UnknownFlag", []string{"tn3270", "/dev/ttyACM0", "host", "--speed", "9600"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, exitConfig, Execute(tt.args))
		})
	}
}

func TestExecute_Version(t *testing.T) {
	assert.Equal(t, exitOK, Execute([]string{"version"}))
}
