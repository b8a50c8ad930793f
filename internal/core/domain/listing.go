package domain

import (
	"strconv"
	"time"
)

// LatestTag is present in the tag set of every listing.
const LatestTag = "latest"

// ModelListing is a brief catalog entry for a pullable model.
type ModelListing struct {
	Name        string    `json:"name" yaml:"name" db:"name"` // "namespace/model" or bare "model"
	Description string    `json:"description" yaml:"description" db:"description"`
	Updated     time.Time `json:"updated" yaml:"updated" db:"updated"` // calendar date, midnight
	Tags        []string  `json:"tags" yaml:"tags" db:"tags"`
}

// ModelListingDetails is the extended per-model metadata from the model page.
type ModelListingDetails struct {
	Name         string              `json:"name" yaml:"name" db:"name"`
	Description  string              `json:"description" yaml:"description" db:"description"`
	Version      string              `json:"version" yaml:"version" db:"version"`
	Updated      time.Time           `json:"updated" yaml:"updated" db:"updated"`
	Tags         []string            `json:"tags" yaml:"tags" db:"tags"`
	FileSizes    map[string]FileSize `json:"file_sizes" yaml:"file_sizes" db:"file_sizes"`
	ReadmeMarkup string              `json:"readme_markup" yaml:"readme_markup" db:"readme_markup"`
}

// FileSize is a download size as shown by the catalog, e.g. 13GB.
type FileSize struct {
	Size float64 `json:"size" yaml:"size"`
	Unit string  `json:"unit" yaml:"unit"`
}

func (s FileSize) String() string {
	return strconv.FormatFloat(s.Size, 'f', -1, 64) + s.Unit
}

// DateOf truncates t to midnight in its own location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Clone returns a copy that shares no slices with l.
func (l ModelListing) Clone() ModelListing {
	l.Tags = append([]string(nil), l.Tags...)
	return l
}

// Clone returns a copy that shares no slices or maps with d.
func (d ModelListingDetails) Clone() ModelListingDetails {
	d.Tags = append([]string(nil), d.Tags...)
	if d.FileSizes != nil {
		sizes := make(map[string]FileSize, len(d.FileSizes))
		for tag, size := range d.FileSizes {
			sizes[tag] = size
		}
		d.FileSizes = sizes
	}
	return d
}
