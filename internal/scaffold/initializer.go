// Package scaffold creates the files `lodge init` seeds into a fresh
// repository.
package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/lodge/internal/config"
)

//go:embed templates/*
var templatesFS embed.FS

// FileInfo represents a file to be created during initialization.
type FileInfo struct {
	Path        string
	Content     []byte
	Permissions os.FileMode
}

// Initialize creates the lodge project structure in the current
// directory. With force, an existing lodge.yml and the seeded
// knowledge/README.md are replaced; other files under knowledge/ are
// user documents and are never touched.
func Initialize(force bool) error {
	if force {
		if err := handleForce(); err != nil {
			return err
		}
	}

	files, err := getTemplateFiles()
	if err != nil {
		return err
	}

	if err := createDirectories(); err != nil {
		return err
	}

	if err := writeFiles(files); err != nil {
		return err
	}

	return validateCreatedFiles()
}

// handleForce removes the files init would recreate.
func handleForce() error {
	if _, err := os.Stat("lodge.yml"); err == nil {
		fmt.Println("⚠️  Removing existing lodge.yml...")
		if err := os.Remove("lodge.yml"); err != nil {
			return fmt.Errorf("failed to remove lodge.yml: %w", err)
		}
	}

	seededReadme := filepath.Join(config.DefaultKnowledgeRoot, "README.md")
	if _, err := os.Stat(seededReadme); err == nil {
		fmt.Printf("⚠️  Removing existing %s...\n", seededReadme)
		if err := os.Remove(seededReadme); err != nil {
			return fmt.Errorf("failed to remove %s: %w", seededReadme, err)
		}
	}

	return nil
}

// getTemplateFiles reads the embedded templates.
func getTemplateFiles() ([]FileInfo, error) {
	lodgeYml, err := templatesFS.ReadFile("templates/lodge.yml.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read lodge.yml template: %w", err)
	}

	knowledgeReadme, err := templatesFS.ReadFile("templates/knowledge-readme.md.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge README template: %w", err)
	}

	return []FileInfo{
		{
			Path:        "lodge.yml",
			Content:     lodgeYml,
			Permissions: 0644,
		},
		{
			Path:        filepath.Join(config.DefaultKnowledgeRoot, "README.md"),
			Content:     knowledgeReadme,
			Permissions: 0644,
		},
	}, nil
}

// createDirectories creates the knowledge tree skeleton.
func createDirectories() error {
	if err := os.MkdirAll(config.DefaultKnowledgeRoot, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", config.DefaultKnowledgeRoot, err)
	}
	return nil
}

// writeFiles writes all template files to disk.
func writeFiles(files []FileInfo) error {
	for _, file := range files {
		if err := os.WriteFile(file.Path, file.Content, file.Permissions); err != nil {
			return fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
	}
	return nil
}

// validateCreatedFiles runs the seeded lodge.yml through the real
// config loader so init never leaves behind a file `lodge up` would
// reject.
func validateCreatedFiles() error {
	if _, err := config.Load("lodge.yml"); err != nil {
		return fmt.Errorf("created lodge.yml failed validation: %w", err)
	}
	return nil
}

// PrintSuccess prints the post-init summary.
func PrintSuccess() {
	fmt.Println("\n✅ Successfully initialized lodge project!")
	fmt.Println("\nCreated:")
	fmt.Println("  ✓ lodge.yml")
	fmt.Println("  ✓ knowledge/README.md")
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Add '.lodge/' to your .gitignore file")
	fmt.Println("  2. Declare your producers in lodge.yml")
	fmt.Println("  3. Run 'lodge up' to start the registry and steward")
}
