package scaffold

import (
	"fmt"
	"os"

	"github.com/dyluth/lodge/internal/config"
)

// CheckExisting returns an error when lodge.yml or the knowledge tree
// already exist, so a plain init never clobbers a configured project.
func CheckExisting() error {
	var existing []string

	if _, err := os.Stat("lodge.yml"); err == nil {
		existing = append(existing, "lodge.yml")
	}

	if info, err := os.Stat(config.DefaultKnowledgeRoot); err == nil && info.IsDir() {
		existing = append(existing, config.DefaultKnowledgeRoot+"/")
	}

	if len(existing) > 0 {
		errMsg := "project already initialized\n\nFound existing"
		if len(existing) == 1 {
			errMsg += fmt.Sprintf(": %s", existing[0])
		} else {
			errMsg += " files:\n"
			for _, file := range existing {
				errMsg += fmt.Sprintf("  - %s\n", file)
			}
		}
		errMsg += "\nUse 'lodge init --force' to reseed lodge.yml (documents under knowledge/ are kept)"

		return fmt.Errorf("%s", errMsg)
	}

	return nil
}
