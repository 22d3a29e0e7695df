package main

import "testing"

func TestDefineLogOptionsParsesLogicOps(t *testing.T) {
	p := NewParsedOptions()
	defineLogOptions(p)

	if err := p.Parse([]string{"-x", "other.map", "logfile"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := p.GetString("xor-logfile"); got != "other.map" {
		t.Errorf("xor-logfile = %q, want other.map", got)
	}

	args := p.GetArgs()
	if len(args) != 1 || args[0] != "logfile" {
		t.Errorf("GetArgs() = %v, want [logfile]", args)
	}
}

func TestDefineLogOptionsChangeTypesArg(t *testing.T) {
	p := NewParsedOptions()
	defineLogOptions(p)

	if err := p.Parse([]string{"--change-types=?*,--", "logfile"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := p.GetString("change-types"); got != "?*,--" {
		t.Errorf("change-types = %q, want ?*,--", got)
	}
}

func TestDefineLogOptionsDoneStatusAndDeleteIfDone(t *testing.T) {
	p := NewParsedOptions()
	defineLogOptions(p)

	if err := p.Parse([]string{"-D", "-d", "logfile"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !p.GetBool("done-status") {
		t.Errorf("done-status should be set by -D")
	}
	if !p.GetBool("delete-if-done") {
		t.Errorf("delete-if-done should be set by -d")
	}
}

func TestDefineLogOptionsRejectsUnknownFlag(t *testing.T) {
	p := NewParsedOptions()
	defineLogOptions(p)

	if err := p.Parse([]string{"--not-a-real-option", "logfile"}); err == nil {
		t.Errorf("expected error for unknown option")
	}
}
