package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jaaptech/nepalipay/internal/core/datamodel/gateway"
	"github.com/jaaptech/nepalipay/internal/paymentgateway"
	"github.com/jaaptech/nepalipay/pkg/logger"
)

var checkConfigCmd = &cobra.Command{
	Use:   "checkconfig",
	Short: "Validate gateway configuration",
	Long:  `Check that every configured gateway has the credentials it needs by constructing each client.`,
	RunE:  runCheckConfig,
}

func runCheckConfig(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	registry := paymentgateway.NewRegistry(cfg, logger.Component("checkconfig"))

	failed := false
	for _, g := range gateway.Supported() {
		if _, err := registry.Make(g); err != nil {
			failed = true
			fmt.Printf("%-12s FAIL  %v (required: %v)\n", g.Label(), err, paymentgateway.RequiredFields(g))
			continue
		}
		fmt.Printf("%-12s OK\n", g.Label())
	}

	if failed {
		os.Exit(1)
	}
	return nil
}
