package instance

import (
	"os"

	"github.com/angelmondragon/marketwatch-backend/pkg/env"
)

// GetID names this process for lock ownership and logs. INSTANCE_ID
// wins, then the hostname.
func GetID() string {
	if id := env.Get("INSTANCE_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
