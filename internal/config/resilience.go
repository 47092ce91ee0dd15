package config

import (
	"time"

	"market_board/internal/retry"
)

type ResilienceConfig struct {
	CatalogLoad   retry.Config
	PushReconnect retry.Config
	SheetWrite    retry.Config
}

// Price polls are not retried; a failed poll waits for the next tick.
var DefaultResilienceConfig = ResilienceConfig{
	CatalogLoad: retry.Config{
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		MaxDelay:   30 * time.Second,
		Timeout:    15 * time.Second,
	},
	PushReconnect: retry.Config{
		BaseDelay:     1 * time.Second,
		MaxDelay:      60 * time.Second,
		Timeout:       15 * time.Second,
		InfiniteRetry: true,
	},
	SheetWrite: retry.Config{
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		MaxDelay:   30 * time.Second,
		Timeout:    15 * time.Second,
	},
}
