package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/adsecurecheck/adaudit/internal/directory"
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Verify directory connectivity and credentials without auditing",
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		domain, _ := cmd.Flags().GetString("domain")
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		useSSL, _ := cmd.Flags().GetBool("ssl")

		if password == "" {
			password = viper.GetString("password")
		}
		if server == "" || domain == "" || username == "" || password == "" {
			return fmt.Errorf("--server, --domain, --username and a password are required")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		creds := directory.NewCredentials(username, password)
		conn := directory.NewLDAPConnector(server, domain, creds, useSSL, logger)

		info, err := conn.TestConnection(ctx)
		if err != nil {
			fmt.Printf("%s Connection failed: %v\n", colorError("✗"), err)
			return err
		}

		fmt.Printf("%s Connected to %s\n", colorSuccess("✓"), server)
		fmt.Printf("  Domain:  %s\n", info.DomainName)
		fmt.Printf("  Base DN: %s\n", info.BaseDN)
		if info.MinPwdLength > 0 {
			fmt.Printf("  Minimum password length: %d\n", info.MinPwdLength)
		}
		return nil
	},
}

func init() {
	testCmd.Flags().String("server", "", "AD server hostname or IP")
	testCmd.Flags().String("domain", "", "AD domain, e.g. corp.example.com")
	testCmd.Flags().StringP("username", "u", "", "bind account username")
	testCmd.Flags().StringP("password", "p", "", "bind account password (prefer ADAUDIT_PASSWORD)")
	testCmd.Flags().Bool("ssl", false, "connect over LDAPS")
}
