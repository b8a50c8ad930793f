package constants

const ExchangeCatalog = "catalog_exchange"

// Queue names
const (
	QueueSweepRequests = "catalog_sweep_requests"
)

// Routing keys
const (
	RoutingKeySweepReports  = "catalog.sweep.reports"
	RoutingKeySweepRequests = "catalog.sweep.requests"
)
