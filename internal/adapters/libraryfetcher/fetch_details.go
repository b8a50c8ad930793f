package libraryfetcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ollama-catalog/internal/core/domain"
)

// detailsURL maps "user/model" to {base}/user/model and a bare "model",
// which lives in the library namespace, to {base}/library/model.
func (a *LibraryFetcherAdapter) detailsURL(name string) string {
	if strings.Contains(name, "/") {
		return a.baseURL.JoinPath(name).String()
	}
	return a.baseURL.JoinPath("library", name).String()
}

// GetListingDetails fetches and parses the page of one model.
func (a *LibraryFetcherAdapter) GetListingDetails(ctx context.Context, name string) (domain.ModelListingDetails, error) {
	if strings.TrimSpace(name) == "" {
		return domain.ModelListingDetails{}, fmt.Errorf("library fetcher: model name cannot be empty")
	}

	target := a.detailsURL(name)
	markup, err := a.fetch(ctx, target)
	if err != nil {
		return domain.ModelListingDetails{}, fmt.Errorf("library fetcher: details of %s: %w", name, err)
	}

	details, err := ParseListingDetail(markup, a.now())
	if err != nil {
		return domain.ModelListingDetails{}, fmt.Errorf("library fetcher: details of %s: %w", name, err)
	}

	// The page title drops the namespace; keep the name the record was
	// requested under so it can be found in the store again.
	if details.Name != name {
		slog.Debug("LibraryFetcher: page title differs from requested name", "name", name, "title", details.Name)
		details.Name = name
	}
	return details, nil
}
