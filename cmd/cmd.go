package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/zimagetools/lorafuse/convert"
	"github.com/zimagetools/lorafuse/format"
	"github.com/zimagetools/lorafuse/progress"
	"github.com/zimagetools/lorafuse/version"
)

func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "lorafuse",
		Short:   "Convert split q/k/v LoRA adapters to the fused qkv layout",
		Version: version.Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Disable usage printing on errors
			cmd.SilenceUsage = true
		},
	}

	convertCmd := &cobra.Command{
		Use:   "convert INPUT [OUTPUT]",
		Short: "Convert a single adapter file",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  convertHandler,
	}

	batchCmd := &cobra.Command{
		Use:   "batch DIR",
		Short: "Convert every adapter file in a directory",
		Args:  cobra.ExactArgs(1),
		RunE:  batchHandler,
	}
	batchCmd.Flags().StringP("out", "o", "", "Directory for converted files (default: source directory)")
	batchCmd.Flags().Bool("skip-existing", true, "Skip inputs whose converted output already exists")
	batchCmd.Flags().IntP("concurrency", "j", 1, "Number of files to convert in parallel")

	rootCmd.AddCommand(convertCmd, batchCmd)
	return rootCmd
}

func convertHandler(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := deriveOutputPath(input)
	if len(args) == 2 {
		output = args[1]
	}

	p := progress.NewProgress(os.Stderr)
	bar := progress.NewBar(filepath.Base(input))
	p.Add(bar)

	fused, err := convert.Convert(input, output, bar.Set)
	p.Stop()
	if err != nil {
		return err
	}

	fmt.Printf("Fused %d attention group(s) into %s\n", fused, output)
	return nil
}

func deriveOutputPath(input string) string {
	return filepath.Join(filepath.Dir(input), convert.OutputName(filepath.Base(input)))
}

func batchHandler(cmd *cobra.Command, args []string) error {
	outDir, _ := cmd.Flags().GetString("out")
	skipExisting, _ := cmd.Flags().GetBool("skip-existing")
	concurrency, _ := cmd.Flags().GetInt("concurrency")

	results, err := convert.ConvertDir(cmd.Context(), args[0], convert.BatchOptions{
		OutputDir:    outDir,
		SkipExisting: skipExisting,
		Concurrency:  concurrency,
	})
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("No adapter files found.")
		return nil
	}

	var data [][]string
	var succeeded, skipped, failed int
	for _, r := range results {
		status := "converted"
		switch {
		case r.Skipped:
			skipped++
			status = "skipped"
		case r.Err != nil:
			failed++
			status = r.Err.Error()
		default:
			succeeded++
		}

		var size string
		if fi, err := os.Stat(r.Input); err == nil {
			size = format.HumanBytes(fi.Size())
		}

		data = append(data, []string{filepath.Base(r.Input), size, strconv.Itoa(r.Fused), status})
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"FILE", "SIZE", "FUSED", "STATUS"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	fmt.Printf("\n%d attempted, %d succeeded, %d skipped, %d failed\n", len(results), succeeded, skipped, failed)
	return nil
}
