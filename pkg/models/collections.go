package models

// Collection names for every durable document the settlement engine owns or reads.
const (
	CollectionOrders              = "orders"
	CollectionPayouts             = "payouts"
	CollectionPendingPayouts      = "pendingPayouts"
	CollectionDisputes            = "disputes"
	CollectionRefunds             = "refunds"
	CollectionVinylStockMovements = "vinylStockMovements"
	CollectionMerchStockMovements = "merchStockMovements"

	CollectionReleases      = "releases"
	CollectionTracks        = "tracks"
	CollectionMerchItems    = "merchItems"
	CollectionVinylItems    = "vinylItems"
	CollectionVinylListings = "vinylListings"
	CollectionPayees        = "payees"
)
