package main

import (
	"fmt"
	"os"

	"rupped-storefront/internal/catalog"
	"rupped-storefront/internal/model"
	"rupped-storefront/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	relayURL    string
	productID   string
	productName string
	listPrice   float64
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "negotiate",
	Short: "Negotiate a price with the Rupped storefront from the terminal",
	Long: `negotiate runs a client negotiation session against the storefront's
/api/negotiate relay and prints the assistant's reply as it streams in.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := "warn"
		if verbose {
			level = "debug"
		}
		_ = logger.Init(level, "text")
		logger.SetOutput(os.Stderr)
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&relayURL, "url", "http://localhost:3000/api/negotiate", "storefront negotiation endpoint")
	rootCmd.PersistentFlags().StringVarP(&productID, "product", "p", "1", "catalog product id")
	rootCmd.PersistentFlags().StringVar(&productName, "name", "", "product name (defaults to the catalog entry)")
	rootCmd.PersistentFlags().Float64Var(&listPrice, "price", 0, "list price (defaults to the catalog entry)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// negotiationContext fills the product from the embedded catalog. Explicit
// flags win over catalog values.
func negotiationContext(c *catalog.Catalog, id, name string, price float64) (model.NegotiationContext, error) {
	nctx := model.NegotiationContext{ProductID: id, ProductName: name, ListPrice: price}
	if p, ok := c.Get(id); ok {
		if nctx.ProductName == "" {
			nctx.ProductName = p.Name
		}
		if nctx.ListPrice <= 0 {
			nctx.ListPrice = p.Price
		}
	}

	if nctx.ProductName == "" || nctx.ListPrice <= 0 {
		return nctx, fmt.Errorf("unknown product %q: pass --name and --price", id)
	}
	return nctx, nil
}

func loadContext() (model.NegotiationContext, error) {
	c, err := catalog.Load("")
	if err != nil {
		return model.NegotiationContext{}, err
	}
	return negotiationContext(c, productID, productName, listPrice)
}
