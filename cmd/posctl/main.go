package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jmerrifield20/SecurePOS/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL    string
	operatorID   string
	cfgFile      string
	outputFormat string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "posctl",
	Short: "SecurePOS command-line tool",
	Long: `posctl records and checks sales on a SecurePOS server (posd).

The fingerprint and verify-proof commands work offline: they recompute
a sale fingerprint or check a Merkle inclusion proof without contacting
the server, so evidence can be checked independently of it.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.posctl")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("posctl")
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
		if operatorID == "" {
			operatorID = viper.GetString("operator")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.posctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "posd base URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&operatorID, "operator", "", "operator id sent as X-Operator-ID")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "text", "Output format: text or json")

	rootCmd.AddCommand(fingerprintCmd)
	rootCmd.AddCommand(verifyProofCmd)
	rootCmd.AddCommand(saleCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.AddCommand(versionCmd)
}

// newClient builds an SDK client from the persistent flags.
func newClient() (*client.Client, error) {
	var opts []client.Option
	if operatorID != "" {
		opts = append(opts, client.WithOperator(operatorID))
	}
	return client.New(serverURL, opts...)
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the posctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("posctl %s (SecurePOS)\n", version)
	},
}
