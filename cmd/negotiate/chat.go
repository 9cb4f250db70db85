package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"rupped-storefront/internal/negotiation"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func init() {
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive negotiation",
	Long: `chat reads messages from stdin. Besides free text it understands:
  /offer <amount>   submit an offer within the allowed range
  /new              start over after a rejected offer
  /status           show the deal status
  /quit             leave`,
	RunE: func(cmd *cobra.Command, args []string) error {
		nctx, err := loadContext()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		printer := newStreamPrinter(out)
		session := negotiation.NewSession(nctx, negotiation.NewHTTPTransport(relayURL, nil),
			negotiation.WithObserver(printer.Observe))
		printer.Observe(negotiation.Snapshot{Transcript: session.Transcript(), Status: session.Status()})

		lo, hi := negotiation.OfferBounds(nctx.ListPrice)
		fmt.Fprintf(out, "Offers between $%.2f and $%.2f, suggested $%.2f.\n", lo, hi, negotiation.DefaultOffer(nctx.ListPrice))

		return runChat(ctx, session, cmd.InOrStdin(), out, isTerminal(cmd.InOrStdin()))
	},
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func runChat(ctx context.Context, session *negotiation.Session, in io.Reader, out io.Writer, interactive bool) error {
	scanner := bufio.NewScanner(in)
	for {
		if interactive {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var err error
		switch {
		case line == "/quit":
			return nil
		case line == "/new":
			session.RequestNewOffer()
			fmt.Fprintf(out, "Status: %s\n", session.Status())
			continue
		case line == "/status":
			fmt.Fprintf(out, "Status: %s\n", session.Status())
			continue
		case strings.HasPrefix(line, "/offer"):
			amount, perr := strconv.ParseFloat(strings.TrimPrefix(strings.TrimSpace(strings.TrimPrefix(line, "/offer")), "$"), 64)
			if perr != nil {
				fmt.Fprintln(out, "Usage: /offer <amount>")
				continue
			}
			err = session.SubmitOffer(ctx, amount)
		default:
			err = session.Send(ctx, line)
		}

		switch {
		case errors.Is(err, negotiation.ErrOfferOutOfRange):
			fmt.Fprintln(out, err)
			continue
		case err != nil && ctx.Err() != nil:
			return nil
		}
		// 传输错误已经以道歉消息写入对话，这里继续
		if msg := describeStatus(session); msg != "" {
			fmt.Fprintln(out, msg)
		}
	}
}
