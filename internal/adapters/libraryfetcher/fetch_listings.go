package libraryfetcher

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/url"
	"strconv"

	"ollama-catalog/internal/core/domain"
)

// listingURL addresses one page of the newest-first search listing.
func (a *LibraryFetcherAdapter) listingURL(page int) string {
	u := a.baseURL.JoinPath("search")
	q := url.Values{}
	q.Set("q", "")
	q.Set("p", strconv.Itoa(page))
	q.Set("sort", "newest")
	u.RawQuery = q.Encode()
	return u.String()
}

// EnumerateListings fetches page 1, learns the final page number from it,
// and then walks pages 2..N. A page is fetched only once the consumer has
// taken every listing of the page before it.
func (a *LibraryFetcherAdapter) EnumerateListings(ctx context.Context) iter.Seq2[domain.ModelListing, error] {
	return func(yield func(domain.ModelListing, error) bool) {
		finalPage := 1
		for page := 1; page <= finalPage; page++ {
			target := a.listingURL(page)
			markup, err := a.fetch(ctx, target)
			if err != nil {
				yield(domain.ModelListing{}, fmt.Errorf("library fetcher: listing page %d: %w", page, err))
				return
			}
			ref := a.now()

			if page == 1 {
				finalPage, err = ParseFinalPageNumber(markup)
				if err != nil {
					yield(domain.ModelListing{}, fmt.Errorf("library fetcher: listing page 1 of %s: %w", target, err))
					return
				}
				slog.Info("LibraryFetcher: walking catalog", "pages", finalPage)
			}

			listings, err := ParseListingPage(markup, ref)
			if err != nil {
				yield(domain.ModelListing{}, fmt.Errorf("library fetcher: listing page %d: %w", page, err))
				return
			}
			slog.Debug("LibraryFetcher: parsed listing page", "page", page, "of", finalPage, "listings", len(listings))

			for _, listing := range listings {
				if !yield(listing, nil) {
					return
				}
			}
		}
	}
}
