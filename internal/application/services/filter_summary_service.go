package services

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/zatekoja/furniturefinder/internal/domain/entities"
)

// AllProductsLabel is shown when no filter is active
const AllProductsLabel = "All Products"

const summarySeparator = " | "

// Summarize returns display labels in a fixed order: category flags, rooms,
// furniture types, then brands
func Summarize(sel entities.FilterSelection) []string {
	title := cases.Title(language.English)
	labels := make([]string, 0, len(sel.CategoryFlags)+len(sel.Rooms)+len(sel.FurnitureTypes)+len(sel.Brands))

	for _, c := range sel.CategoryFlags {
		labels = append(labels, c.DisplayName())
	}
	for _, r := range sel.Rooms {
		labels = append(labels, title.String(strings.ReplaceAll(string(r), "-", " ")))
	}
	for _, t := range sel.FurnitureTypes {
		labels = append(labels, title.String(string(t)))
	}
	for _, b := range sel.Brands {
		labels = append(labels, b.Title())
	}
	return labels
}

// SummaryLine joins the labels into one line for compact display
func SummaryLine(sel entities.FilterSelection) string {
	labels := Summarize(sel)
	if len(labels) == 0 {
		return AllProductsLabel
	}
	return strings.Join(labels, summarySeparator)
}
