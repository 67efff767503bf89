package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/adsecurecheck/adaudit/internal/shared/constants"
)

var cfgFile string
var logger *zap.SugaredLogger
var dataDir string

var rootCmd = &cobra.Command{
	Use:   "adaudit",
	Short: "Active Directory security auditing (for authorized assessments only)",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// init config
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			viper.AddConfigPath("$HOME")
			viper.SetConfigName(".adaudit")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("ADAUDIT")
		viper.AutomaticEnv()

		_ = viper.ReadInConfig()
		if dataDir == "" {
			dataDir = viper.GetString("data_dir")
		}
		if dataDir == "" {
			dataDir = "./data"
		}

		if err := os.MkdirAll(dataDir, constants.DefaultDirPerm); err != nil {
			return fmt.Errorf("failed to create data directory: %s", err.Error())
		}

		// init logger
		l, _ := zap.NewProduction()
		logger = l.Sugar()

		// Make dataDir absolute (for clarity in logs)
		if abs, err := filepath.Abs(dataDir); err == nil {
			dataDir = abs
		}

		logger.Infof("data_dir=%s", dataDir)

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.adaudit.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory for scan history and report artifacts")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(scansCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(versionCmd)
}
