package constants

// Static route constants
const (
	APIRoute      = "/api"
	WebhooksRoute = "/webhooks"
	DocsRoute     = "/docs/api/"
	MetricsRoute  = "/metrics"
)
