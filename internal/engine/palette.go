package engine

import (
	"fmt"
	"strings"
	"unicode/utf16"
)

const (
	DefaultUserColor      Color = "#000000"
	FallbackCategoryColor Color = "#d3d3d3"
	UnknownCategoryName         = "Unknown"
)

const (
	CategoryOffice  CategoryID = 13752528
	CategoryHoliday CategoryID = 13752529
	CategorySick    CategoryID = 13753382
	CategoryRemote  CategoryID = 13753384
)

// DefaultCategories is the built-in subcalendar palette.
var DefaultCategories = []Category{
	{ID: CategoryOffice, Name: "Office", Color: "#4770d8"},
	{ID: CategoryHoliday, Name: "Holiday", Color: "#4fb5a1"},
	{ID: CategorySick, Name: "Sick", Color: "#a01a1a"},
	{ID: CategoryRemote, Name: "Remote", Color: "#7742a9"},
}

// AssignColor derives a stable #rrggbb color from a display name. It hashes
// the UTF-16 code units of name with 32-bit wraparound and takes the low
// three bytes, low byte first.
func AssignColor(name string) Color {
	if name == "" {
		return DefaultUserColor
	}

	var hash int32
	for _, c := range utf16.Encode([]rune(name)) {
		hash = int32(c) + ((hash << 5) - hash)
	}

	color := "#"
	for i := 0; i < 3; i++ {
		value := (hash >> (i * 8)) & 0xff
		color += fmt.Sprintf("%02x", value)
	}
	return Color(color)
}

// Palette is the static category table used for colors and display names.
type Palette struct {
	entries map[CategoryID]Category
}

// NewPalette starts from DefaultCategories and applies overrides on top.
func NewPalette(overrides ...Category) *Palette {
	p := &Palette{entries: make(map[CategoryID]Category, len(DefaultCategories)+len(overrides))}
	for _, c := range DefaultCategories {
		p.entries[c.ID] = c
	}
	for _, c := range overrides {
		existing, ok := p.entries[c.ID]
		if ok {
			if c.Name == "" {
				c.Name = existing.Name
			}
			if c.Color == "" {
				c.Color = existing.Color
			}
		}
		p.entries[c.ID] = c
	}
	return p
}

func (p *Palette) Color(id CategoryID) Color {
	if c, ok := p.entries[id]; ok && c.Color != "" {
		return c.Color
	}
	return FallbackCategoryColor
}

func (p *Palette) Name(id CategoryID) string {
	if c, ok := p.entries[id]; ok && c.Name != "" {
		return c.Name
	}
	return UnknownCategoryName
}

// Lookup finds a category by display name, case-insensitively.
func (p *Palette) Lookup(name string) (Category, bool) {
	for _, c := range p.entries {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Category{}, false
}

// CategoryName resolves id against a fetched category list.
func CategoryName(categories []Category, id CategoryID) string {
	for _, c := range categories {
		if c.ID == id {
			return c.Name
		}
	}
	return UnknownCategoryName
}
