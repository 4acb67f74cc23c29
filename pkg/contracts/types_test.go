package contracts

import "testing"

func TestParseMediaType(t *testing.T) {
	for _, valid := range []string{"text", "image", "audio", "video", "document"} {
		mt, err := ParseMediaType(valid)
		if err != nil {
			t.Fatalf("%q rejected: %v", valid, err)
		}
		if string(mt) != valid {
			t.Fatalf("got %q, want %q", mt, valid)
		}
	}

	if _, err := ParseMediaType("hologram"); err == nil {
		t.Fatal("unknown media type accepted")
	}
	if _, err := ParseMediaType(""); err == nil {
		t.Fatal("empty media type accepted")
	}
}

func TestParseExecutionMode(t *testing.T) {
	for _, valid := range []string{"ASK", "COMMAND"} {
		mode, err := ParseExecutionMode(valid)
		if err != nil {
			t.Fatalf("%q rejected: %v", valid, err)
		}
		if string(mode) != valid {
			t.Fatalf("got %q, want %q", mode, valid)
		}
	}

	mode, err := ParseExecutionMode("ask")
	if err != nil {
		t.Fatalf("lowercase mode rejected: %v", err)
	}
	if mode != ModeAsk {
		t.Fatalf("got %q, want %q", mode, ModeAsk)
	}

	if _, err := ParseExecutionMode("MAYBE"); err == nil {
		t.Fatal("unknown mode accepted")
	}
}
