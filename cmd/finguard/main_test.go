package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRunHelp(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := Run([]string{"finguard", "help"}, &out, &errOut); code != 0 {
		t.Fatalf("help exited %d", code)
	}
	if !strings.Contains(out.String(), "USAGE") {
		t.Fatalf("usage text missing: %s", out.String())
	}
}

func TestRunVersion(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := Run([]string{"finguard", "version"}, &out, &errOut); code != 0 {
		t.Fatalf("version exited %d", code)
	}
	if !strings.Contains(out.String(), "finguard v") {
		t.Fatalf("version text missing: %s", out.String())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := Run([]string{"finguard", "frobnicate"}, &out, &errOut); code != 2 {
		t.Fatalf("unknown command exited %d", code)
	}
	if !strings.Contains(errOut.String(), "Unknown command") {
		t.Fatalf("error text missing: %s", errOut.String())
	}
}

func TestRunAnalyzeRequiresText(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := Run([]string{"finguard", "analyze"}, &out, &errOut); code != 2 {
		t.Fatalf("analyze without text exited %d", code)
	}
}

func TestRunAnalyzeOneShot(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run([]string{"finguard", "analyze", "--text", "Regular bank transfer"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("analyze exited %d: %s", code, errOut.String())
	}
	if !strings.Contains(out.String(), "SAFE_APPROVED") {
		t.Fatalf("expected SAFE_APPROVED in output: %s", out.String())
	}
}
