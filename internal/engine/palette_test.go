package engine_test

import (
	"regexp"
	"testing"

	"github.com/christopherklint97/workcal/internal/engine"
)

func TestAssignColor(t *testing.T) {
	tests := []struct {
		name string
		want engine.Color
	}{
		{"", "#000000"},
		{"A", "#410000"},
		{"AB", "#210800"},
	}
	for _, tt := range tests {
		if got := engine.AssignColor(tt.name); got != tt.want {
			t.Errorf("AssignColor(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestAssignColor_Deterministic(t *testing.T) {
	hex := regexp.MustCompile(`^#[0-9a-f]{6}$`)
	for _, name := range []string{"Anne Jensen", "Søren Østergaard", "李雷"} {
		first := engine.AssignColor(name)
		if second := engine.AssignColor(name); first != second {
			t.Errorf("AssignColor(%q) not stable: %s then %s", name, first, second)
		}
		if !hex.MatchString(string(first)) {
			t.Errorf("AssignColor(%q) = %s, not a #rrggbb color", name, first)
		}
	}
	if engine.AssignColor("Anne Jensen") == engine.AssignColor("Bo Jensen") {
		t.Error("different names should not share a color here")
	}
}

func TestPalette_Fallbacks(t *testing.T) {
	p := engine.NewPalette()

	if got := p.Color(engine.CategoryOffice); got != "#4770d8" {
		t.Errorf("office color = %s", got)
	}
	if got := p.Name(engine.CategorySick); got != "Sick" {
		t.Errorf("sick name = %s", got)
	}
	if got := p.Color(42); got != engine.FallbackCategoryColor {
		t.Errorf("unknown color = %s, want %s", got, engine.FallbackCategoryColor)
	}
	if got := p.Name(42); got != "Unknown" {
		t.Errorf("unknown name = %q, want Unknown", got)
	}
}

func TestPalette_Overrides(t *testing.T) {
	p := engine.NewPalette(
		engine.Category{ID: engine.CategoryOffice, Color: "#111111"},
		engine.Category{ID: 99, Name: "Training", Color: "#222222"},
	)

	if got := p.Name(engine.CategoryOffice); got != "Office" {
		t.Errorf("override without name should keep Office, got %q", got)
	}
	if got := p.Color(engine.CategoryOffice); got != "#111111" {
		t.Errorf("office color = %s, want override", got)
	}
	if c, ok := p.Lookup("training"); !ok || c.ID != 99 {
		t.Errorf("Lookup(training) = %+v, %v", c, ok)
	}
}

func TestCategoryName(t *testing.T) {
	cats := []engine.Category{{ID: 1, Name: "Office"}}
	if got := engine.CategoryName(cats, 1); got != "Office" {
		t.Errorf("got %q", got)
	}
	if got := engine.CategoryName(cats, 2); got != "Unknown" {
		t.Errorf("got %q, want Unknown", got)
	}
}
