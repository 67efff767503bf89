package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/adsecurecheck/adaudit/internal/application"
	"github.com/adsecurecheck/adaudit/internal/notify"
	"github.com/adsecurecheck/adaudit/internal/scan"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a security audit against an Active Directory domain",
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		domain, _ := cmd.Flags().GetString("domain")
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		useSSL, _ := cmd.Flags().GetBool("ssl")
		inactiveDays, _ := cmd.Flags().GetInt("inactive-days")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		rateLimit, _ := cmd.Flags().GetInt("rate-limit")
		emailTo, _ := cmd.Flags().GetStringSlice("email-to")

		if password == "" {
			password = viper.GetString("password") // ADAUDIT_PASSWORD
		}
		if server == "" || domain == "" {
			return fmt.Errorf("--server and --domain are required")
		}
		if username == "" || password == "" {
			return fmt.Errorf("--username and a password (flag or ADAUDIT_PASSWORD) are required")
		}

		container, err := application.NewContainer(dataDir, application.Options{
			SMTP:        smtpConfigFromViper(),
			Concurrency: concurrency,
			RateLimit:   rateLimit,
		}, logger)
		if err != nil {
			return err
		}

		// Ctrl+C cancels the run; the scan still lands in the store as failed.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("%s Auditing %s (%s)\n", colorInfo("→"), domain, server)

		sc, err := container.Orchestrator.Execute(ctx, scan.Request{
			Server:       server,
			Domain:       domain,
			Username:     username,
			Password:     password,
			UseSSL:       useSSL,
			InactiveDays: inactiveDays,
			EmailTo:      emailTo,
		})
		if err != nil {
			if sc != nil {
				fmt.Printf("%s Scan %s failed: %s\n", colorError("✗"), sc.ID(), sc.Error())
			}
			return err
		}

		printScanResult(sc)
		return nil
	},
}

func init() {
	scanCmd.Flags().String("server", "", "AD server hostname or IP")
	scanCmd.Flags().String("domain", "", "AD domain, e.g. corp.example.com")
	scanCmd.Flags().StringP("username", "u", "", "bind account username")
	scanCmd.Flags().StringP("password", "p", "", "bind account password (prefer ADAUDIT_PASSWORD)")
	scanCmd.Flags().Bool("ssl", false, "connect over LDAPS")
	scanCmd.Flags().Int("inactive-days", 0, "logon-age threshold for the stale account check")
	scanCmd.Flags().Int("concurrency", 0, "parallel checks per family (0 = default)")
	scanCmd.Flags().Int("rate-limit", 0, "directory queries per second (0 = unlimited)")
	scanCmd.Flags().StringSlice("email-to", nil, "mail the finished report to these addresses")
}

// smtpConfigFromViper reads the mail relay settings; nil when no relay is
// configured.
func smtpConfigFromViper() *notify.SMTPConfig {
	host := viper.GetString("smtp.host")
	if host == "" {
		return nil
	}
	return &notify.SMTPConfig{
		Host:     host,
		Port:     viper.GetInt("smtp.port"),
		Username: viper.GetString("smtp.username"),
		Password: viper.GetString("smtp.password"),
		From:     viper.GetString("smtp.from"),
	}
}

func printScanResult(sc *scan.Scan) {
	stats := sc.Statistics()

	fmt.Printf("\n%s Scan %s %s in %s\n", colorSuccess("✓"), sc.ID(),
		formatStatusWithColor(string(sc.Status())), sc.Duration().Round(10*time.Millisecond))
	fmt.Printf("  Risk score: %d/100\n", stats.RiskScore)
	fmt.Printf("  Findings:   %d total\n", stats.Total)
	fmt.Printf("    %s: %d  %s: %d  %s: %d  %s: %d\n",
		colorCritical("CRITICAL"), stats.CriticalCount,
		colorError("HIGH"), stats.HighCount,
		colorWarn("MEDIUM"), stats.MediumCount,
		colorInfo("LOW"), stats.LowCount)

	artifacts := sc.Artifacts()
	if len(artifacts) > 0 {
		fmt.Println("  Reports:")
		formats := make([]string, 0, len(artifacts))
		for format := range artifacts {
			formats = append(formats, format)
		}
		sort.Strings(formats)
		for _, format := range formats {
			fmt.Printf("    %-5s %s\n", format, artifacts[format])
		}
	}
}
