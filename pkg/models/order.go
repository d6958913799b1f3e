package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fairwavehq/fairwave-backend/pkg/enums"
)

// Order is the canonical record of one completed payment. At most one order
// exists per non-null payment reference.
type Order struct {
	ID               string              `json:"id"`
	OrderNumber      string              `json:"orderNumber"`
	Customer         Customer            `json:"customer"`
	Shipping         *ShippingAddress    `json:"shipping,omitempty"`
	Items            []OrderItem         `json:"items"`
	Totals           OrderTotals         `json:"totals"`
	HasPhysicalItems bool                `json:"hasPhysicalItems"`
	HasPreOrderItems bool                `json:"hasPreOrderItems"`
	PreOrderRelease  *time.Time          `json:"preOrderRelease,omitempty"`
	PaymentMethod    enums.PaymentMethod `json:"paymentMethod"`
	PaymentReference string              `json:"paymentReference,omitempty"`
	Status           enums.OrderStatus   `json:"status"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// Customer captures the buyer identity attached to an order.
type Customer struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone,omitempty"`
	UserID    string `json:"userId,omitempty"`
}

// ShippingAddress is the destination for physical items.
type ShippingAddress struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// OrderItem is a single purchased line embedded in an Order.
type OrderItem struct {
	ID              string          `json:"id"`
	Type            enums.ItemType  `json:"type"`
	Title           string          `json:"title"`
	ArtistID        string          `json:"artistId,omitempty"`
	SupplierID      string          `json:"supplierId,omitempty"`
	SellerID        string          `json:"sellerId,omitempty"`
	SourceListingID string          `json:"sourceListingId,omitempty"`
	ReleaseID       string          `json:"releaseId,omitempty"`
	TrackID         string          `json:"trackId,omitempty"`
	Price           decimal.Decimal `json:"price"`
	Quantity        int             `json:"quantity"`
	Size            string          `json:"size,omitempty"`
	Color           string          `json:"color,omitempty"`
	PreOrder        bool            `json:"preOrder,omitempty"`
	PreOrderRelease *time.Time      `json:"preOrderRelease,omitempty"`

	// Enrichment filled by the assembler from the catalog.
	ArtworkURL string      `json:"artworkUrl,omitempty"`
	FileURL    string      `json:"fileUrl,omitempty"`
	Tracks     []TrackInfo `json:"tracks,omitempty"`
}

// TrackInfo is the fulfillment payload for one playable track on an item.
type TrackInfo struct {
	ID      string `json:"id,omitempty"`
	Title   string `json:"title"`
	FileURL string `json:"fileUrl,omitempty"`
}

// OrderTotals breaks an order's charge into its settled components.
type OrderTotals struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	Shipping     decimal.Decimal `json:"shipping"`
	PlatformFee  decimal.Decimal `json:"platformFee"`
	ProcessorFee decimal.Decimal `json:"processorFee"`
	ServiceFees  decimal.Decimal `json:"serviceFees"`
	Total        decimal.Decimal `json:"total"`
}

// LineTotal returns price times quantity for the item.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// PayeeID resolves the counterparty entitled to this item's share: the
// listing seller for peer-to-peer vinyl, the supplier for merch, otherwise
// the artist.
func (i OrderItem) PayeeID() string {
	if i.SourceListingID != "" && i.SellerID != "" {
		return i.SellerID
	}
	if i.Type == enums.ItemTypeMerch {
		return i.SupplierID
	}
	return i.ArtistID
}

// PayeeRole reports the role of the payee resolved by PayeeID.
func (i OrderItem) PayeeRole() enums.PayeeRole {
	if i.SourceListingID != "" && i.SellerID != "" {
		return enums.PayeeRoleVinylSeller
	}
	if i.Type == enums.ItemTypeMerch {
		return enums.PayeeRoleMerchSupplier
	}
	return enums.PayeeRoleArtist
}
