package instance

import (
	"fmt"
	"os"
)

// GetRedisHost returns the hostname clients should dial to reach an
// instance registry. Inside a container the host's published ports sit
// behind host.docker.internal rather than localhost.
func GetRedisHost() string {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "host.docker.internal"
	}
	return "localhost"
}

// GetRedisURL builds the registry URL for a published port.
func GetRedisURL(port int) string {
	return fmt.Sprintf("redis://%s:%d", GetRedisHost(), port)
}
