package libraryfetcher

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ollama-catalog/internal/core/domain"
)

var refTime = time.Date(2024, time.July, 20, 12, 0, 0, 0, time.UTC)

func readFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return string(data)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseFinalPageNumber(t *testing.T) {
	page, err := ParseFinalPageNumber(readFixture(t, "listing.html"))
	require.NoError(t, err)
	assert.Equal(t, 7, page)
}

func TestParseFinalPageNumberMissingControl(t *testing.T) {
	_, err := ParseFinalPageNumber(`<html><body><ul class="grid"></ul></body></html>`)

	var parseErr *domain.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, selFinalPage, parseErr.Element)
}

func TestParseFinalPageNumberNotNumeric(t *testing.T) {
	markup := `<ul class="inline-flex"><li><a>1</a></li><li><a>last</a></li><li><a>Next</a></li></ul>`
	_, err := ParseFinalPageNumber(markup)

	var parseErr *domain.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestParseListingPage(t *testing.T) {
	listings, err := ParseListingPage(readFixture(t, "listing.html"), refTime)
	require.NoError(t, err)
	require.Len(t, listings, 3)

	assert.Equal(t, domain.ModelListing{
		Name:        "gemma2",
		Description: "Google Gemma 2 is a high-performing and efficient model.",
		Updated:     date(2024, time.June, 29),
		Tags:        []string{"latest", "27b", "2b", "9b"},
	}, listings[0])

	assert.Equal(t, "wangshenzhi/gemma2-9b-chinese-chat", listings[1].Name)
	assert.Equal(t, "The official ollama model for Gemma-2-9B-Chinese-Chat.", listings[1].Description)
	assert.Equal(t, []string{"latest", "9b"}, listings[1].Tags)
	assert.Equal(t, date(2024, time.July, 18), listings[1].Updated)

	// No badges at all still yields a non-empty tag set.
	assert.Equal(t, "llava", listings[2].Name)
	assert.Equal(t, []string{"latest"}, listings[2].Tags)
	assert.Equal(t, date(2024, time.July, 19), listings[2].Updated)
}

func TestParseListingPageMissingGrid(t *testing.T) {
	_, err := ParseListingPage(`<html><body><p>maintenance</p></body></html>`, refTime)

	var parseErr *domain.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, selListingGrid, parseErr.Element)
}

func TestParseListingPageMissingUpdated(t *testing.T) {
	markup := `<ul class="grid"><li class="flex"><a href="/library/phi3">
		<div class="flex"><p>Phi-3</p></div></a></li></ul>`
	_, err := ParseListingPage(markup, refTime)

	var parseErr *domain.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, selListingUpdated, parseErr.Element)
}

func TestParseListingPageUnknownUnit(t *testing.T) {
	markup := `<ul class="grid"><li class="flex"><a href="/library/phi3">
		<div class="flex"><p>Phi-3</p><p class="flex"><span>Updated 2 fortnights ago</span></p></div></a></li></ul>`
	_, err := ParseListingPage(markup, refTime)

	var formatErr *domain.FormatError
	assert.ErrorAs(t, err, &formatErr)
}

func TestParseListingDetail(t *testing.T) {
	details, err := ParseListingDetail(readFixture(t, "details.html"), refTime)
	require.NoError(t, err)

	assert.Equal(t, "gemma2", details.Name)
	assert.Equal(t, "Google Gemma 2 is a high-performing and efficient model.", details.Description)
	assert.Equal(t, "ff02c3702f32", details.Version)
	assert.Equal(t, date(2024, time.May, 21), details.Updated)
	assert.Equal(t, []string{"latest", "27b", "2b", "9b-instruct-q8_0"}, details.Tags)
	assert.Equal(t, map[string]domain.FileSize{
		"latest":           {Size: 5.4, Unit: "GB"},
		"2b":               {Size: 1.6, Unit: "GB"},
		"27b":              {Size: 16, Unit: "GB"},
		"9b-instruct-q8_0": {Size: 9.8, Unit: "GB"},
	}, details.FileSizes)
	assert.Equal(t, "<h1>Gemma 2</h1><p>Readme body.</p>", details.ReadmeMarkup)
}

func TestParseListingDetailMissingElements(t *testing.T) {
	full := readFixture(t, "details.html")

	cases := map[string][2]string{
		selDetailTitle:   {`<a class="font-medium" href="/library/gemma2">gemma2</a>`, ""},
		selDetailVersion: {`class="px-4 py-3"`, `class="py-3"`},
		selPrimaryTags:   {`id="primary-tags"`, ""},
		selDetailReadme:  {`<div id="display"><h1>Gemma 2</h1><p>Readme body.</p></div>`, ""},
	}
	for element, edit := range cases {
		t.Run(element, func(t *testing.T) {
			markup := replaceOnce(t, full, edit[0], edit[1])
			_, err := ParseListingDetail(markup, refTime)

			var parseErr *domain.ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Equal(t, element, parseErr.Element)
		})
	}
}

func TestParseListingDetailWithoutSecondaryGallery(t *testing.T) {
	markup := replaceOnce(t, readFixture(t, "details.html"), `id="secondary-tags"`, "")

	details, err := ParseListingDetail(markup, refTime)
	require.NoError(t, err)
	assert.Len(t, details.FileSizes, 3)
}

func replaceOnce(t *testing.T, s, old, new string) string {
	t.Helper()
	require.Equal(t, 1, strings.Count(s, old), "fixture fragment %q", old)
	return strings.Replace(s, old, new, 1)
}

func TestParseFileSize(t *testing.T) {
	size, err := ParseFileSize(" 13GB ")
	require.NoError(t, err)
	assert.Equal(t, domain.FileSize{Size: 13, Unit: "GB"}, size)
	assert.Equal(t, "13GB", size.String())

	size, err = ParseFileSize("274 MB")
	require.NoError(t, err)
	assert.Equal(t, domain.FileSize{Size: 274, Unit: "MB"}, size)

	_, err = ParseFileSize("huge")
	var formatErr *domain.FormatError
	assert.True(t, errors.As(err, &formatErr))
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"latest"}, normalizeTags(nil))
	assert.Equal(t, []string{"latest", "70b", "8b"}, normalizeTags([]string{"8b", " 70b ", "latest", "8b", ""}))
}

func TestModelNameFromHref(t *testing.T) {
	assert.Equal(t, "gemma2", modelNameFromHref("/library/gemma2"))
	assert.Equal(t, "user/model", modelNameFromHref("/user/model"))
	assert.Equal(t, "", modelNameFromHref("/"))
}
