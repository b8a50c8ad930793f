package libraryfetcher

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ollama-catalog/internal/core/domain"
)

// CSS selectors for ollama.com markup. The markup is unversioned; when it
// changes these are the lines to touch.
const (
	selFinalPage = "ul.inline-flex > li:nth-last-child(2) > a:nth-child(1)"

	selListingGrid    = "ul.grid"
	selListingEntry   = "ul.grid > li.flex > a:nth-child(1)"
	selListingDesc    = "div.flex > p:nth-child(1)"
	selListingTags    = "div.flex > div.flex > span"
	selListingUpdated = "div.flex > p.flex > span:last-child"

	selDetailTitle    = "h1.flex > a.font-medium"
	selDetailDesc     = "h2.break-words"
	selDetailVersion  = "div.px-4 > p:last-child"
	selDetailUpdated  = `p.sm\:hidden`
	selPrimaryTags    = "#primary-tags"
	selSecondaryTags  = "#secondary-tags"
	selGalleryEntry   = "a"
	selGalleryTagName = "div > span"
	selDetailReadme   = "#display"
)

var fileSizeRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([A-Za-z]+)$`)

func newDocument(markup string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, &domain.ParseError{Element: "document", Err: err}
	}
	return doc, nil
}

// ParseFinalPageNumber reads the highest page index from the pagination
// control of a listing page.
func ParseFinalPageNumber(markup string) (int, error) {
	doc, err := newDocument(markup)
	if err != nil {
		return 0, err
	}

	anchor := doc.Find(selFinalPage).First()
	if anchor.Length() == 0 {
		return 0, &domain.ParseError{Element: selFinalPage}
	}

	text := strings.TrimSpace(anchor.Text())
	page, err := strconv.Atoi(text)
	if err != nil || page < 1 {
		return 0, &domain.ParseError{Element: selFinalPage, Err: fmt.Errorf("page number %q is not a positive integer", text)}
	}
	return page, nil
}

// ParseListingPage extracts every entry of one listing page. Relative
// "updated" strings are resolved against ref.
func ParseListingPage(markup string, ref time.Time) ([]domain.ModelListing, error) {
	doc, err := newDocument(markup)
	if err != nil {
		return nil, err
	}
	if doc.Find(selListingGrid).Length() == 0 {
		return nil, &domain.ParseError{Element: selListingGrid}
	}

	entries := doc.Find(selListingEntry)
	listings := make([]domain.ModelListing, 0, entries.Length())
	for i := range entries.Nodes {
		listing, err := parseListingEntry(entries.Eq(i), ref)
		if err != nil {
			return nil, fmt.Errorf("listing entry %d: %w", i, err)
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

func parseListingEntry(entry *goquery.Selection, ref time.Time) (domain.ModelListing, error) {
	href, ok := entry.Attr("href")
	name := modelNameFromHref(href)
	if !ok || name == "" {
		return domain.ModelListing{}, &domain.ParseError{Element: "a[href]", Err: fmt.Errorf("invalid link target %q", href)}
	}

	desc := entry.Find(selListingDesc).First()
	if desc.Length() == 0 {
		return domain.ModelListing{}, &domain.ParseError{Element: selListingDesc, Err: fmt.Errorf("model %s", name)}
	}

	var badges []string
	entry.Find(selListingTags).Each(func(_ int, s *goquery.Selection) {
		badges = append(badges, s.Text())
	})

	updatedNode := entry.Find(selListingUpdated).First()
	if updatedNode.Length() == 0 {
		return domain.ModelListing{}, &domain.ParseError{Element: selListingUpdated, Err: fmt.Errorf("model %s", name)}
	}
	updated, err := ParseRelativeTime(cleanUpdated(updatedNode.Text()), ref)
	if err != nil {
		return domain.ModelListing{}, fmt.Errorf("model %s: %w", name, err)
	}

	return domain.ModelListing{
		Name:        name,
		Description: collapseText(desc.Text()),
		Updated:     domain.DateOf(updated),
		Tags:        normalizeTags(badges),
	}, nil
}

// ParseListingDetail extracts a model page. The two tag galleries are
// independent and both contribute to the size map.
func ParseListingDetail(markup string, ref time.Time) (domain.ModelListingDetails, error) {
	doc, err := newDocument(markup)
	if err != nil {
		return domain.ModelListingDetails{}, err
	}

	title, err := requiredText(doc.Selection, selDetailTitle)
	if err != nil {
		return domain.ModelListingDetails{}, err
	}
	desc, err := requiredText(doc.Selection, selDetailDesc)
	if err != nil {
		return domain.ModelListingDetails{}, err
	}
	caption, err := requiredText(doc.Selection, selDetailVersion)
	if err != nil {
		return domain.ModelListingDetails{}, err
	}
	version := strings.Fields(caption)[0]

	updatedText, err := requiredText(doc.Selection, selDetailUpdated)
	if err != nil {
		return domain.ModelListingDetails{}, err
	}
	updated, err := ParseRelativeTime(cleanUpdated(updatedText), ref)
	if err != nil {
		return domain.ModelListingDetails{}, fmt.Errorf("model %s: %w", title, err)
	}

	primary := doc.Find(selPrimaryTags).First()
	if primary.Length() == 0 {
		return domain.ModelListingDetails{}, &domain.ParseError{Element: selPrimaryTags}
	}
	sizes := make(map[string]domain.FileSize)
	if err := collectGallery(primary, sizes); err != nil {
		return domain.ModelListingDetails{}, fmt.Errorf("model %s: %w", title, err)
	}
	if secondary := doc.Find(selSecondaryTags).First(); secondary.Length() > 0 {
		if err := collectGallery(secondary, sizes); err != nil {
			return domain.ModelListingDetails{}, fmt.Errorf("model %s: %w", title, err)
		}
	}

	tags := make([]string, 0, len(sizes))
	for tag := range sizes {
		tags = append(tags, tag)
	}

	readmeNode := doc.Find(selDetailReadme).First()
	if readmeNode.Length() == 0 {
		return domain.ModelListingDetails{}, &domain.ParseError{Element: selDetailReadme}
	}
	readme, err := readmeNode.Html()
	if err != nil {
		return domain.ModelListingDetails{}, &domain.ParseError{Element: selDetailReadme, Err: err}
	}

	return domain.ModelListingDetails{
		Name:         title,
		Description:  desc,
		Version:      version,
		Updated:      domain.DateOf(updated),
		Tags:         normalizeTags(tags),
		FileSizes:    sizes,
		ReadmeMarkup: strings.TrimSpace(readme),
	}, nil
}

// collectGallery adds every tag of a gallery to sizes. Tags already present
// keep their first size, so the primary gallery wins.
func collectGallery(gallery *goquery.Selection, sizes map[string]domain.FileSize) error {
	var err error
	gallery.ChildrenFiltered(selGalleryEntry).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		tagNode := a.Find(selGalleryTagName).First()
		sizeNode := a.ChildrenFiltered("span").First()
		if tagNode.Length() == 0 {
			err = &domain.ParseError{Element: selGalleryTagName}
			return false
		}
		if sizeNode.Length() == 0 {
			err = &domain.ParseError{Element: "a > span"}
			return false
		}

		tag := collapseText(tagNode.Text())
		size, parseErr := ParseFileSize(sizeNode.Text())
		if parseErr != nil {
			err = fmt.Errorf("tag %s: %w", tag, parseErr)
			return false
		}
		if _, seen := sizes[tag]; !seen {
			sizes[tag] = size
		}
		return true
	})
	return err
}

// ParseFileSize parses sizes like "13GB" or "4.7 GB".
func ParseFileSize(text string) (domain.FileSize, error) {
	m := fileSizeRe.FindStringSubmatch(collapseText(text))
	if m == nil {
		return domain.FileSize{}, &domain.FormatError{Value: text, Reason: "expected <number><unit>"}
	}
	size, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return domain.FileSize{}, &domain.FormatError{Value: text, Reason: err.Error()}
	}
	return domain.FileSize{Size: size, Unit: m[2]}, nil
}

func requiredText(root *goquery.Selection, selector string) (string, error) {
	node := root.Find(selector).First()
	if node.Length() == 0 {
		return "", &domain.ParseError{Element: selector}
	}
	text := collapseText(node.Text())
	if text == "" {
		return "", &domain.ParseError{Element: selector, Err: fmt.Errorf("empty text")}
	}
	return text, nil
}

// modelNameFromHref maps "/library/gemma2" to "gemma2" and keeps
// "/user/model" as "user/model".
func modelNameFromHref(href string) string {
	name := strings.TrimLeft(strings.TrimSpace(href), "/")
	return strings.TrimPrefix(name, "library/")
}

func cleanUpdated(text string) string {
	text = strings.TrimSpace(normalizeSpaces(text))
	return strings.TrimSpace(strings.TrimPrefix(text, "Updated"))
}

func collapseText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// normalizeTags deduplicates tags and makes sure "latest" is present.
// The result starts with "latest", the rest sorted.
func normalizeTags(raw []string) []string {
	seen := map[string]bool{domain.LatestTag: true}
	tags := []string{}
	for _, t := range raw {
		t = collapseText(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return append([]string{domain.LatestTag}, tags...)
}
