package utils

import "testing"

func TestParseInt64(t *testing.T) {
	if n, err := ParseInt64(" 123456789012 "); err != nil || n != 123456789012 {
		t.Fatalf("ParseInt64 = %d, %v", n, err)
	}
	if n, err := ParseInt64("-100"); err != nil || n != -100 {
		t.Fatalf("negative ids must parse, got %d, %v", n, err)
	}
	if _, err := ParseInt64("12a"); err == nil {
		t.Fatalf("expected error for non-numeric input")
	}
	if _, err := ParseInt64(""); err == nil {
		t.Fatalf("expected error for empty input")
	}
}

func TestParseID(t *testing.T) {
	if id, ok := ParseID("42"); !ok || id != 42 {
		t.Fatalf("ParseID(42) = %d, %v", id, ok)
	}
	for _, bad := range []string{"", "0", "-1", "abc", "4.2"} {
		if _, ok := ParseID(bad); ok {
			t.Fatalf("ParseID(%q) should fail", bad)
		}
	}
}

func TestSplitPayload(t *testing.T) {
	p, rest, ok := SplitPayload("complete_task:17")
	if !ok || p != "complete_task" || rest != "17" {
		t.Fatalf("SplitPayload = %q %q %v", p, rest, ok)
	}
	if _, _, ok := SplitPayload("confirm_unbind"); ok {
		t.Fatalf("no colon must report ok=false")
	}
}
