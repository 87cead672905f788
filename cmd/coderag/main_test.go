package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewRootCmd_Help(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--help"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("expected no error for --help, got: %v", err)
	}
	if !strings.Contains(out.String(), "coderag") {
		t.Errorf("expected usage text to mention coderag, got: %q", out.String())
	}
}

func TestNewRootCmd_ListsSubcommands(t *testing.T) {
	cmd := newRootCmd()
	names := make(map[string]bool)
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "ingest", "mcpserve", "providers"} {
		if !names[want] {
			t.Errorf("expected subcommand %q to be registered", want)
		}
	}
}

func TestNewRootCmd_IngestRequiresPath(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"ingest"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error when --path is not provided")
	}
}

func TestNewRootCmd_ProvidersCommandRuns(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"providers"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("providers command failed: %v", err)
	}
}

func TestNewRootCmd_InvalidSubcommand(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"bogus"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error for an unknown subcommand")
	}
}
