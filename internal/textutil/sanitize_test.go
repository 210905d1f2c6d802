package textutil

import "testing"

func TestSanitizeFileName(t *testing.T) {
	tests := map[string]string{
		"  clip.mp4 ":    "clip.mp4",
		"a/b:c*d?.mov":   "a-b-c-d.mov",
		"cafe\u0301.mov": "caf\u00e9.mov",
		"":               "",
	}
	for in, want := range tests {
		if got := SanitizeFileName(in); got != want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPathSafeToken(t *testing.T) {
	got, changed := PathSafeToken("preset=veryfast")
	if got != "preset=veryfast" || changed {
		t.Fatalf("unexpected result %q changed=%v", got, changed)
	}
	got, changed = PathSafeToken("r=30000/1001")
	if got != "r=30000-1001" || !changed {
		t.Fatalf("unexpected result %q changed=%v", got, changed)
	}
}

func TestFoldKey(t *testing.T) {
	if FoldKey(" Preset ") != "preset" {
		t.Fatalf("expected folded key, got %q", FoldKey(" Preset "))
	}
}
