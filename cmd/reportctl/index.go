package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/app"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/similarity"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the section similarity index",
}

var indexSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed an empty index with the default or file-provided sections",
	RunE:  runIndexSeed,
}

var indexAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Append one section to the index",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIndexAdd,
}

var indexSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Print the sections nearest to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIndexSearch,
}

func openIndex(ctx context.Context) (*similarity.Index, error) {
	cfg := loadConfig()
	return app.OpenIndex(ctx, cfg, app.NewGeminiClient(cfg), newLogger())
}

func runIndexSeed(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	sections, err := app.SeedSections(file)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	index, err := openIndex(ctx)
	if err != nil {
		return err
	}
	defer index.Close()

	added, err := index.SeedIfEmpty(ctx, sections)
	if err != nil {
		return err
	}
	if added == 0 {
		fmt.Fprintf(os.Stdout, "Index already holds %d section(s), nothing seeded.\n", index.Len())
		return nil
	}
	fmt.Fprintf(os.Stdout, "Seeded %d section(s).\n", added)
	return nil
}

func runIndexAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	index, err := openIndex(ctx)
	if err != nil {
		return err
	}
	defer index.Close()

	if err := index.Add(ctx, strings.Join(args, " ")); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Added. Index size: %d\n", index.Len())
	return nil
}

func runIndexSearch(cmd *cobra.Command, args []string) error {
	k, _ := cmd.Flags().GetInt("k")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx := cmd.Context()
	index, err := openIndex(ctx)
	if err != nil {
		return err
	}
	defer index.Close()

	results, err := index.Search(ctx, strings.Join(args, " "), k)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	for i, result := range results {
		fmt.Fprintf(os.Stdout, "%d. [%.4f] %s\n", i+1, result.Distance, result.Text)
	}
	return nil
}

func init() {
	indexSeedCmd.Flags().String("file", "", "YAML seed file with a top-level sections list")
	indexSearchCmd.Flags().IntP("k", "k", similarity.DefaultK, "number of results")
	indexSearchCmd.Flags().Bool("json", false, "output results as JSON")

	indexCmd.AddCommand(indexSeedCmd, indexAddCmd, indexSearchCmd)
	rootCmd.AddCommand(indexCmd)
}
