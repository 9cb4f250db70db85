package main

import (
	"fmt"
	"strconv"

	"rupped-storefront/internal/negotiation"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(offerCmd)
}

var offerCmd = &cobra.Command{
	Use:   "offer [amount]",
	Short: "Submit a single offer and print the reply",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nctx, err := loadContext()
		if err != nil {
			return err
		}

		amount := negotiation.DefaultOffer(nctx.ListPrice)
		if len(args) == 1 {
			if amount, err = strconv.ParseFloat(args[0], 64); err != nil {
				return fmt.Errorf("invalid amount %q", args[0])
			}
		}

		out := cmd.OutOrStdout()
		session := negotiation.NewSession(nctx, negotiation.NewHTTPTransport(relayURL, nil),
			negotiation.WithObserver(newStreamPrinter(out).Observe))

		if err := session.SubmitOffer(cmd.Context(), amount); err != nil {
			return err
		}

		if msg := describeStatus(session); msg != "" {
			fmt.Fprintln(out, msg)
		}
		return nil
	},
}
