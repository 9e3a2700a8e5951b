package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/sourceplane/pkgforge/internal/distribute"
	"github.com/sourceplane/pkgforge/internal/recipe"
	"github.com/sourceplane/pkgforge/internal/source"
)

var variantsCmd = &cobra.Command{
	Use:   "variants",
	Short: "List the build jobs a recipe expands to",
	Long:  "Expand the recipe across the variant matrix without resolving dependencies and list the resulting jobs with their bound variables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listVariants(cmd)
	},
}

func registerVariantsCommand(root *cobra.Command) {
	root.AddCommand(variantsCmd)

	variantsCmd.Flags().StringVar(&targetPlatform, "platform", "linux-64", "Default target platform")
	variantsCmd.Flags().BoolVarP(&longFormat, "long", "l", false, "Show requirements per job")
}

func listVariants(cmd *cobra.Command) error {
	ctx := cmd.Context()

	tmpl, err := recipe.Load(recipeFile)
	if err != nil {
		return fmt.Errorf("failed to load recipe: %w", err)
	}
	tmpl.GitDescribe = func(dir string) (string, error) {
		return source.Describe(ctx, dir)
	}

	matrix, err := loadMatrix()
	if err != nil {
		return err
	}

	distributor := &distribute.Distributor{
		Source:   source.GitProvider{},
		Platform: targetPlatform,
		Log:      newLogger(),
	}
	jobs, err := distributor.Distribute(ctx, tmpl, matrix)
	if err != nil {
		return fmt.Errorf("failed to expand variants: %w", err)
	}
	jobs, err = distribute.ExpandOutputs(tmpl, jobs)
	if err != nil {
		return fmt.Errorf("failed to expand outputs: %w", err)
	}

	fmt.Printf("Jobs (%d):\n", len(jobs))
	for _, job := range jobs {
		var pairs []string
		for _, name := range job.UsedVariables {
			pairs = append(pairs, fmt.Sprintf("%s=%s", name, job.Variant.StringValue(name)))
		}
		fmt.Printf("  %s [%s] %s\n", job.Dist(), job.TargetPlatform, strings.Join(pairs, " "))
		if longFormat {
			printSection("build", job.Requirements.Build)
			printSection("host", job.Requirements.Host)
			printSection("run", job.Requirements.Run)
		}
	}
	return nil
}

func printSection(name string, specs []string) {
	if len(specs) == 0 {
		return
	}
	fmt.Printf("    %s:\n", name)
	for _, spec := range specs {
		fmt.Printf("      - %s\n", spec)
	}
}
