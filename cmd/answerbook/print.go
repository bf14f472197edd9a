package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-answerbook/internal/aggregate"
	auth "github.com/mind-engage/mindengage-answerbook/internal/auth/middleware"
	"github.com/mind-engage/mindengage-answerbook/internal/exports"
	"github.com/mind-engage/mindengage-answerbook/internal/printer"
)

var (
	printFormat string

	tokenSub  string
	tokenRole string
	tokenTTL  time.Duration
)

var printCmd = &cobra.Command{
	Use:   "print <assignmentId>",
	Short: "Render the combined document of an assignment into the blob store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := exports.ParseFormat(printFormat)
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer a.close(cmd.Context())

		key, err := a.exporter.Export(cmd.Context(), args[0], f)
		if err != nil {
			return notice(err)
		}
		u, err := a.exporter.Blobs.URL(key)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), u)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <assignmentId>",
	Short: "Write the combined document of an assignment as markdown to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer a.close(cmd.Context())
		return notice(a.agg.Print(cmd.Context(), args[0], printer.MarkdownWriter{W: cmd.OutOrStdout()}))
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a token the browser extension uses to connect to the bridge",
	RunE: func(cmd *cobra.Command, args []string) error {
		tok, err := auth.NewAuthService(cfg.BridgeSecret).Issue(tokenSub, tokenRole, tokenTTL)
		if err != nil {
			return err
		}
		log.Debug("issued bridge token", zap.String("sub", tokenSub), zap.String("role", tokenRole), zap.Duration("ttl", tokenTTL))
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

// notice turns the user-facing failures into their messages.
func notice(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, aggregate.ErrNothingFound):
		fmt.Fprintln(os.Stderr, aggregate.NoticeNothingFound)
	case errors.Is(err, printer.ErrNoChrome):
		fmt.Fprintln(os.Stderr, "no Chrome found; set CHROME_BIN to export PDF")
	case errors.Is(err, printer.ErrWindowBlocked):
		fmt.Fprintln(os.Stderr, printer.NoticeWindowBlocked)
	}
	return err
}

func init() {
	printCmd.Flags().StringVar(&printFormat, "format", "html", "html, md or pdf")
	tokenCmd.Flags().StringVar(&tokenSub, "sub", "extension", "token subject")
	tokenCmd.Flags().StringVar(&tokenRole, "role", auth.RolePeer, "token role")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 30*24*time.Hour, "token lifetime")
}
