package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/adsecurecheck/adaudit/internal/application"
	"github.com/adsecurecheck/adaudit/internal/scan"
)

var scansCmd = &cobra.Command{
	Use:   "scans",
	Short: "Inspect the stored scan history",
}

var scansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored scans, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := application.NewContainer(dataDir, application.Options{}, logger)
		if err != nil {
			return err
		}
		stored, err := container.ScanRepo.FindAll()
		if err != nil {
			return err
		}
		if len(stored) == 0 {
			fmt.Println("No scans stored yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDOMAIN\tSTATUS\tFINDINGS\tRISK\tSTARTED")
		for _, sc := range stored {
			started := ""
			if !sc.StartedAt().IsZero() {
				started = sc.StartedAt().Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
				sc.ID(), sc.Domain(), formatStatusWithColor(string(sc.Status())),
				sc.Statistics().Total, sc.Statistics().RiskScore, started)
		}
		return w.Flush()
	},
}

var scansShowCmd = &cobra.Command{
	Use:   "show <scan-id>",
	Short: "Show one scan with its findings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := application.NewContainer(dataDir, application.Options{}, logger)
		if err != nil {
			return err
		}
		sc, err := container.ScanRepo.FindByID(args[0])
		if err != nil {
			return err
		}

		printScanResult(sc)
		if sc.Error() != "" {
			fmt.Printf("  Error: %s\n", colorError(sc.Error()))
		}
		fmt.Println()
		for _, finding := range sc.Findings() {
			fmt.Printf("  [%s] %s", colorSeverity(finding.Severity), finding.Title)
			if finding.Count() > 0 {
				fmt.Printf(" (%d affected)", finding.Count())
			}
			fmt.Println()
		}
		return nil
	},
}

var scansDeleteCmd = &cobra.Command{
	Use:   "delete <scan-id>",
	Short: "Delete a scan and its report artifacts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := application.NewContainer(dataDir, application.Options{}, logger)
		if err != nil {
			return err
		}
		if err := container.ScanRepo.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("%s Deleted scan %s\n", colorSuccess("✓"), args[0])
		return nil
	},
}

var scansStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the stored scan history",
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := application.NewContainer(dataDir, application.Options{}, logger)
		if err != nil {
			return err
		}
		stored, err := container.ScanRepo.FindAll()
		if err != nil {
			return err
		}

		completed, failed, findings, riskSum := 0, 0, 0, 0
		for _, sc := range stored {
			switch sc.Status() {
			case scan.StatusCompleted:
				completed++
				findings += sc.Statistics().Total
				riskSum += sc.Statistics().RiskScore
			case scan.StatusFailed:
				failed++
			}
		}

		fmt.Printf("Total scans:     %d\n", len(stored))
		fmt.Printf("Completed:       %d\n", completed)
		fmt.Printf("Failed:          %d\n", failed)
		fmt.Printf("Total findings:  %d\n", findings)
		if completed > 0 {
			fmt.Printf("Avg risk score:  %.1f/100\n", float64(riskSum)/float64(completed))
		}
		return nil
	},
}

func init() {
	scansCmd.AddCommand(scansListCmd)
	scansCmd.AddCommand(scansShowCmd)
	scansCmd.AddCommand(scansDeleteCmd)
	scansCmd.AddCommand(scansStatsCmd)
}
