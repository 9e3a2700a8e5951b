package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/sourceplane/pkgforge/internal/contenthash"
)

var hashCmd = &cobra.Command{
	Use:   "hash <directory>",
	Short: "Compute the content hash of a directory tree",
	Long:  "Hash a directory's structure and file contents with normalized line endings, so equal trees hash equally across platforms.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return hashTree(args[0])
	},
}

func registerHashCommand(root *cobra.Command) {
	root.AddCommand(hashCmd)

	hashCmd.Flags().StringVar(&hashAlgorithm, "algorithm", "sha256", "Hash algorithm (sha256/sha512/sha1/md5)")
	hashCmd.Flags().StringSliceVar(&skipPatterns, "skip", nil, "Relative paths to skip (trailing slash skips the subtree)")
}

func hashTree(dir string) error {
	digest, err := contenthash.Compute(dir, hashAlgorithm, skipPatterns)
	if err != nil {
		return fmt.Errorf("failed to hash %s: %w", dir, err)
	}
	fmt.Println(digest)
	return nil
}
