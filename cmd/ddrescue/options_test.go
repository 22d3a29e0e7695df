package main

import "testing"

func TestDefineRescueOptionsParsesPositionalAndFlags(t *testing.T) {
	p := NewParsedOptions()
	defineRescueOptions(p)

	args := []string{"-b", "4096", "--max-retries=3", "-Rf", "infile", "outfile", "mapfile"}
	if err := p.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if got := p.GetString("block-size"); got != "4096" {
		t.Errorf("block-size = %q, want 4096", got)
	}
	if got := p.GetInt("max-retries"); got != 3 {
		t.Errorf("max-retries = %d, want 3", got)
	}
	if !p.GetBool("reverse") {
		t.Errorf("reverse should be set by -R")
	}
	if !p.GetBool("force") {
		t.Errorf("force should be set by -f")
	}

	wantArgs := []string{"infile", "outfile", "mapfile"}
	gotArgs := p.GetArgs()
	if len(gotArgs) != len(wantArgs) {
		t.Fatalf("GetArgs() = %v, want %v", gotArgs, wantArgs)
	}
	for i, w := range wantArgs {
		if gotArgs[i] != w {
			t.Errorf("GetArgs()[%d] = %q, want %q", i, gotArgs[i], w)
		}
	}
}

func TestDefineRescueOptionsVerboseRepeats(t *testing.T) {
	p := NewParsedOptions()
	defineRescueOptions(p)

	if err := p.Parse([]string{"-vvv", "in", "out"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := p.GetInt("verbose"); got != 3 {
		t.Errorf("verbose = %d, want 3", got)
	}
}

func TestDefineRescueOptionsDefaultsUnset(t *testing.T) {
	p := NewParsedOptions()
	defineRescueOptions(p)

	if err := p.Parse([]string{"in", "out"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if p.IsSet("no-scrape") {
		t.Errorf("no-scrape should not be explicitly set")
	}
	if p.GetBool("no-scrape") {
		t.Errorf("no-scrape default should be false")
	}
	if got := p.GetString("block-size"); got != "512" {
		t.Errorf("block-size default = %q, want 512", got)
	}
}

func TestDefineRescueOptionsRejectsUnknownFlag(t *testing.T) {
	p := NewParsedOptions()
	defineRescueOptions(p)

	if err := p.Parse([]string{"--not-a-real-option", "in", "out"}); err == nil {
		t.Errorf("expected error for unknown option")
	}
}
