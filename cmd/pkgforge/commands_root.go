package main

import "github.com/spf13/cobra"

var (
	recipeFile      string
	variantsFile    string
	indexFile       string
	channelDataFile string
	outputFile      string
	outputFormat    string
	targetPlatform  string
	locksDir        string
	cacheDirs       []string
	debugMode       bool
	noLocking       bool
	noFinalize      bool
	permitUnsat     bool
	crossCompile    bool
	buildIsHost     bool
	longFormat      bool
	hashAlgorithm   string
	skipPatterns    []string
)

var rootCmd = &cobra.Command{
	Use:   "pkgforge",
	Short: "Render engine: recipe × variants → finalized build jobs",
	Long:  "pkgforge expands a build recipe across a variant matrix and pins each resulting job down to exact, solver-backed dependency versions",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&recipeFile, "recipe", "r", "recipe.yaml", "Recipe file path")
	rootCmd.PersistentFlags().StringVarP(&variantsFile, "variants", "m", "", "Variant matrix file path (optional)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug output")

	registerRenderCommand(rootCmd)
	registerVariantsCommand(rootCmd)
	registerHashCommand(rootCmd)
	registerValidateCommand(rootCmd)
}
