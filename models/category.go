package models

import "strings"

// Category is the closed set of known paper categories.
type Category int

const (
	CategoryOther Category = iota
	CategorySIP
	CategoryCapstone
	CategoryActionResearch
	CategoryThesis
)

var categoryCodes = map[Category]string{
	CategorySIP:            "SIP",
	CategoryCapstone:       "Capstone",
	CategoryActionResearch: "Action Research",
	CategoryThesis:         "Thesis",
}

// ParseCategory maps a stored category code to a Category. Unknown codes map to CategoryOther.
func ParseCategory(code string) Category {
	code = strings.TrimSpace(code)
	for c, s := range categoryCodes {
		if strings.EqualFold(s, code) {
			return c
		}
	}
	return CategoryOther
}

// Code returns the stored code, or "" for CategoryOther.
func (c Category) Code() string {
	return categoryCodes[c]
}

// Label is the human readable name shown in filters.
func (c Category) Label() string {
	switch c {
	case CategorySIP:
		return "Science Investigatory Project"
	case CategoryCapstone:
		return "Capstone Project"
	case CategoryActionResearch:
		return "Action Research"
	case CategoryThesis:
		return "Thesis"
	default:
		return "Other"
	}
}

// Badge is the style class the presentation layer uses for the category chip.
func (c Category) Badge() string {
	switch c {
	case CategorySIP:
		return "badge-sip"
	case CategoryCapstone:
		return "badge-capstone"
	case CategoryActionResearch:
		return "badge-action"
	case CategoryThesis:
		return "badge-thesis"
	default:
		return "badge-default"
	}
}

// CategoryLabel returns the display label for a raw category code, falling back to the code itself.
func CategoryLabel(code string) string {
	if c := ParseCategory(code); c != CategoryOther {
		return c.Label()
	}
	return code
}
