package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adsecurecheck/adaudit/internal/application"
	"github.com/adsecurecheck/adaudit/internal/report"
	"github.com/adsecurecheck/adaudit/internal/scan"
	"github.com/adsecurecheck/adaudit/internal/shared/constants"
)

var reportCmd = &cobra.Command{
	Use:   "report <scan-id>",
	Short: "Render a stored scan as txt, csv, html or pdf",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatFlag, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		format := report.Format(strings.ToLower(formatFlag))
		switch format {
		case report.FormatText, report.FormatCSV, report.FormatHTML, report.FormatPDF:
		default:
			return fmt.Errorf("invalid format: %s (must be txt, csv, html, or pdf)", formatFlag)
		}

		container, err := application.NewContainer(dataDir, application.Options{}, logger)
		if err != nil {
			return err
		}

		sc, err := container.ScanRepo.FindByID(args[0])
		if err != nil {
			return err
		}

		payload, err := container.Pipeline.Render(scan.ReportData(sc), format)
		if err != nil {
			return fmt.Errorf("failed to generate report: %w", err)
		}

		if output == "-" {
			_, err = os.Stdout.Write(payload)
			return err
		}
		if output == "" {
			output = report.ArtifactName(sc.Domain(), sc.CompletedAt(), format)
		}
		if err := os.WriteFile(output, payload, constants.DefaultFilePerm); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}

		fmt.Printf("%s Report generated: %s\n", colorSuccess("✓"), output)
		fmt.Printf("  Format: %s\n", format)
		fmt.Printf("  Findings: %d\n", sc.Statistics().Total)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringP("format", "f", "txt", "report format: txt, csv, html, or pdf")
	reportCmd.Flags().StringP("output", "o", "", "output path (default: canonical artifact name, '-' for stdout)")
}
