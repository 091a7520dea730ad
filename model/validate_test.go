package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validListing() CanonicalListing {
	sold := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)
	return CanonicalListing{
		Source:    SourceBaT,
		SourceID:  "123",
		SourceURL: "https://bringatrailer.com/listing/2004-porsche-911-gt3",
		Make:      "Porsche",
		Model:     "911",
		Year:      2004,
		Title:     "2004 Porsche 911 GT3",
		Status:    StatusSold,
		SaleDate:  &sold,
	}
}

func TestValidateAcceptsCompleteListing(t *testing.T) {
	l := validListing()
	assert.Empty(t, l.Validate(time.Now()))
}

func TestValidateReportsViolatedFields(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(*CanonicalListing)
		field  string
	}{
		{"wrong make", func(l *CanonicalListing) { l.Make = "Ferrari" }, "make"},
		{"year too old", func(l *CanonicalListing) { l.Year = 1930 }, "year"},
		{"year in future", func(l *CanonicalListing) { l.Year = now.Year() + 2 }, "year"},
		{"empty model", func(l *CanonicalListing) { l.Model = "" }, "model"},
		{"empty title", func(l *CanonicalListing) { l.Title = "  " }, "title"},
		{"bad url", func(l *CanonicalListing) { l.SourceURL = "not a url" }, "source_url"},
		{"blank source id", func(l *CanonicalListing) { l.SourceID = "" }, "source_id"},
		{"unknown status", func(l *CanonicalListing) { l.Status = "pending" }, "status"},
		{"negative price", func(l *CanonicalListing) { p := -1.0; l.FinalPrice = &p }, "price"},
		{"bad image url", func(l *CanonicalListing) { l.ImageURLs = []string{"ftp://nope"} }, "image_urls"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := validListing()
			tc.mutate(&l)
			assert.Contains(t, l.Validate(now), tc.field)
		})
	}
}

func TestStatusRankNeverReverses(t *testing.T) {
	if StatusRank(StatusSold) <= StatusRank(StatusActive) {
		t.Fatalf("sold must outrank active")
	}
	if StatusRank(StatusActive) <= StatusRank(StatusDraft) {
		t.Fatalf("active must outrank draft")
	}
	assert.Equal(t, StatusRank(StatusSold), StatusRank(StatusDelisted))
}

func TestParseSource(t *testing.T) {
	src, err := ParseSource("bat")
	assert.NoError(t, err)
	assert.Equal(t, SourceBaT, src)

	_, err = ParseSource("craigslist")
	assert.Error(t, err)
}
