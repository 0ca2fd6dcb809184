package shared

import "time"

// HTTP Client Configuration
const (
	DefaultDialTimeout      = 2 * time.Second
	DefaultTLSTimeout       = 2 * time.Second
	DefaultStreamTimeout    = 10 * time.Minute
	DefaultModelListTimeout = 5 * time.Second
	DefaultShutdownTimeout  = 30 * time.Second
)

// Inference Configuration
const (
	DefaultInferenceBaseURL = "https://api.cloudflare.com/client/v4"
	DefaultMaxAttempts      = 3
	DefaultRetryMaxBackoff  = 5 * time.Second
	DoneSentinel            = "[DONE]"
)

// Cache Configuration
const (
	ModelCatalogCacheTTL = 30 * time.Minute
	ModelCatalogCacheKey = "v1:models:text-generation"

	// ModelCatalogRetryDelay spaces out catalog refreshes after a failure
	ModelCatalogRetryDelay = 30 * time.Second

	// OtherModelLabel stands in for models outside the catalog in metrics
	// and usage stats
	OtherModelLabel = "other"
)

// API Configuration
const (
	MaxRequestBodySize = "1M"
	DefaultRateLimit   = 5 // requests per second per client ip
	APIKeyLength       = 32
)

// Usage Flush Configuration
const (
	UsageFlushInterval = 1 * time.Minute
	UsageRetryDelay    = 5 * time.Second
	MaxFlushRetries    = 3
)
