package instance

import (
	"os"

	"github.com/etherloops/ether-backend/pkg/env"
)

const defaultID = "ether-0"

// GetID identifies this process in logs. ETHER_INSTANCE_ID wins, then the
// host name, then a fixed default.
func GetID() string {
	if id := env.Get("ETHER_INSTANCE_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return defaultID
}
