package theme

import (
	"strings"
	"testing"

	"tweetsched/internal/model"
)

func TestParseModeAndNext(t *testing.T) {
	m, err := ParseMode("light")
	if err != nil || m != Light {
		t.Fatalf("ParseMode(light) = %q, %v", m, err)
	}
	if _, err := ParseMode("sepia"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
	if Light.Next() != Dark || Dark.Next() != Light {
		t.Fatal("Next should flip the mode")
	}
}

func TestColors(t *testing.T) {
	cases := map[model.Status]string{
		model.StatusDraft:     "#6c757d",
		model.StatusScheduled: "#007bff",
		model.StatusPosted:    "#28a745",
	}
	for s, want := range cases {
		if got := StatusColor(s); got != want {
			t.Errorf("StatusColor(%s) = %s, want %s", s, got, want)
		}
	}
	if BucketColor(model.BucketViral) != "#10b981" || BucketColor(model.BucketUnderperforming) != "#ef4444" {
		t.Fatal("unexpected bucket colors")
	}
	if StatusColor("archived") != "" {
		t.Fatal("unknown status should have no color")
	}
}

func TestRenderKeepsText(t *testing.T) {
	p := For(Light)
	if !strings.Contains(p.Status(model.StatusPosted), "posted") {
		t.Fatal("status label missing")
	}
	if !strings.Contains(Banner(Dark), "tweetsched") {
		t.Fatal("banner missing name")
	}
}
