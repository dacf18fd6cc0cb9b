package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xavierca1/sherpa/internal/infra/browser"
)

var whatsappFlags struct {
	wait time.Duration
}

var whatsappCmd = &cobra.Command{
	Use:   "whatsapp",
	Short: "Manage the WhatsApp Web browser session",
}

var whatsappLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Open WhatsApp Web and wait for the QR code to be scanned",
	Long: `Opens a visible browser on the persistent profile in WHATSAPP_USER_DATA_DIR.
Scan the QR code with the phone; the session is then reused by dispatch.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		web := browser.NewWhatsAppWeb(cfg.WhatsApp.UserDataDir, false, nil)
		defer web.Close()

		if err := web.Login(cmd.Context(), whatsappFlags.wait); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "session saved to %s\n", cfg.WhatsApp.UserDataDir)
		return nil
	},
}

func init() {
	whatsappLoginCmd.Flags().DurationVar(&whatsappFlags.wait, "wait", 3*time.Minute, "How long to wait for the QR scan")
	whatsappCmd.AddCommand(whatsappLoginCmd)
}
