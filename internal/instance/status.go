package instance

import (
	"github.com/docker/docker/api/types"
)

// Status summarizes the health of one lodge instance.
type Status string

const (
	// StatusRunning means every container of the instance is running.
	StatusRunning Status = "Running"

	// StatusDegraded means some containers are stopped or missing.
	StatusDegraded Status = "Degraded"

	// StatusStopped means the containers exist but none is running.
	StatusStopped Status = "Stopped"
)

// DetermineStatus folds a container set into an overall status.
func DetermineStatus(containers []types.Container) Status {
	if len(containers) == 0 {
		return StatusStopped
	}

	running := 0
	for _, c := range containers {
		if c.State == "running" {
			running++
		}
	}

	switch {
	case running == len(containers):
		return StatusRunning
	case running > 0:
		return StatusDegraded
	default:
		return StatusStopped
	}
}

// Info describes one instance for `lodge list`.
type Info struct {
	Name      string `json:"name"`
	Status    Status `json:"status"`
	Workspace string `json:"workspace"`
	Registry  string `json:"registry"`
	Uptime    string `json:"uptime"`
}
