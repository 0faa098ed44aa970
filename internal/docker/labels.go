package docker

import (
	"fmt"

	"github.com/google/uuid"
)

// Label keys attached to every lodge-managed Docker resource. Discovery
// and teardown filter on these instead of parsing container names.
const (
	LabelProject       = "lodge.project"
	LabelInstanceName  = "lodge.instance.name"
	LabelInstanceRunID = "lodge.instance.run_id"
	LabelWorkspacePath = "lodge.workspace.path"
	LabelComponent     = "lodge.component"
	LabelRedisPort     = "lodge.redis.port"
)

// Component values stored under LabelComponent.
const (
	ComponentRedis   = "redis"
	ComponentSteward = "steward"
)

// BuildLabels creates the standard label set for a lodge resource.
// component may be empty for resources that are not a single component,
// such as the instance network.
func BuildLabels(instanceName, runID, workspacePath, component string) map[string]string {
	labels := map[string]string{
		LabelProject:       "true",
		LabelInstanceName:  instanceName,
		LabelInstanceRunID: runID,
		LabelWorkspacePath: workspacePath,
	}

	if component != "" {
		labels[LabelComponent] = component
	}

	return labels
}

// GenerateRunID creates a fresh identity for one `lodge up` invocation.
// Restarting an instance gets a new run ID even when the name repeats.
func GenerateRunID() string {
	return uuid.New().String()
}

// NetworkName returns the Docker network name for an instance.
func NetworkName(instanceName string) string {
	return fmt.Sprintf("lodge-network-%s", instanceName)
}

// RedisContainerName returns the registry container name for an instance.
func RedisContainerName(instanceName string) string {
	return fmt.Sprintf("lodge-redis-%s", instanceName)
}

// StewardContainerName returns the steward container name for an instance.
func StewardContainerName(instanceName string) string {
	return fmt.Sprintf("lodge-steward-%s", instanceName)
}
