package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/sourceplane/pkgforge/internal/recipe"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate recipe and variants YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateFiles()
	},
}

func registerValidateCommand(root *cobra.Command) {
	root.AddCommand(validateCmd)
}

func validateFiles() error {
	fmt.Println("□ Validating recipe...")
	if _, err := recipe.Load(recipeFile); err != nil {
		return fmt.Errorf("recipe validation failed: %w", err)
	}
	fmt.Println("✓ Recipe is valid")

	if variantsFile != "" {
		fmt.Println("□ Validating variants...")
		matrix, err := loadMatrix()
		if err != nil {
			return fmt.Errorf("variant validation failed: %w", err)
		}
		if err := matrix.Validate(); err != nil {
			return fmt.Errorf("variant validation failed: %w", err)
		}
		fmt.Println("✓ Variants are valid")
	}

	fmt.Println("✓ All validation passed")
	return nil
}
