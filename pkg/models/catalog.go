package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Release is a catalog record for a digital release or its vinyl pressing.
// Artwork and audio URLs drifted across schema generations; use the
// Resolve* accessors instead of reading fields directly.
type Release struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	ArtistID string  `json:"artistId"`
	Tracks   []Track `json:"tracks,omitempty"`

	ArtworkURL    string `json:"artworkUrl,omitempty"`
	CoverImageURL string `json:"coverImageUrl,omitempty"` // legacy
	Artwork       struct {
		URL string `json:"url,omitempty"`
	} `json:"artwork,omitempty"` // legacy nested form

	FileURL     string `json:"fileUrl,omitempty"`
	DownloadURL string `json:"downloadUrl,omitempty"` // legacy
}

// ResolveArtworkURL returns the first populated artwork field, newest schema
// first.
func (r Release) ResolveArtworkURL() string {
	for _, candidate := range []string{r.ArtworkURL, r.CoverImageURL, r.Artwork.URL} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return ""
}

// ResolveFileURL returns the first populated download field, newest schema
// first.
func (r Release) ResolveFileURL() string {
	for _, candidate := range []string{r.FileURL, r.DownloadURL} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return ""
}

// Track is a single playable recording on a release.
type Track struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	FileURL string `json:"fileUrl,omitempty"`
}

// MerchItem is a physical merchandise product with sized/colored variants.
type MerchItem struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	SupplierID    string          `json:"supplierId"`
	Variants      []MerchVariant  `json:"variants"`
	TotalStock    int             `json:"totalStock"`
	SoldStock     int             `json:"soldStock"`
	LowStock      bool            `json:"lowStock"`
	LowStockLevel int             `json:"lowStockLevel,omitempty"`
	Price         decimal.Decimal `json:"price"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// MerchVariant is one stock-bearing size/color combination.
type MerchVariant struct {
	Key   string `json:"key"`
	Size  string `json:"size,omitempty"`
	Color string `json:"color,omitempty"`
	Stock int    `json:"stock"`
	Sold  int    `json:"sold"`
}

// VinylItem is an artist-owned vinyl pressing with its own stock counter.
type VinylItem struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	ArtistID    string          `json:"artistId"`
	ReleaseID   string          `json:"releaseId,omitempty"`
	Stock       int             `json:"stock"`
	Sold        int             `json:"sold"`
	Price       decimal.Decimal `json:"price"`
	PreOrder    bool            `json:"preOrder,omitempty"`
	ReleaseDate *time.Time      `json:"releaseDate,omitempty"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// VinylListing is a peer-to-peer secondhand listing owned by a seller.
type VinylListing struct {
	ID        string          `json:"id"`
	SellerID  string          `json:"sellerId"`
	ReleaseID string          `json:"releaseId,omitempty"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	Sold      bool            `json:"sold"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
