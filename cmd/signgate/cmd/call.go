package cmd

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/vitalvas/signgate/querysig"
)

var callCmd = &cobra.Command{
	Use:   "call <url>",
	Short: "Send a signed GET request to a running server",
	Long: `The call command sends a GET request whose query is signed on the way out.
recvWindow and timestamp are appended when the URL does not carry them.
The response status and body are printed as received.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recvWindow, _ := cmd.Flags().GetDuration("recv-window")
		header, _ := cmd.Flags().GetString("header")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		signer, err := loadSigner(cmd)
		if err != nil {
			return err
		}

		client := &http.Client{
			Timeout: timeout,
			Transport: querysig.NewTransport(nil, querysig.SignConfig{
				Signer:     signer,
				Header:     header,
				RecvWindow: recvWindow,
			}),
		}

		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, args[0], nil)
		if err != nil {
			return fmt.Errorf("invalid url: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, resp.Status)

		if _, err := io.Copy(out, resp.Body); err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		return nil
	},
}

func init() {
	addPrivateKeyFlag(callCmd)
	callCmd.Flags().Duration("recv-window", 5*time.Second, "recvWindow to append when missing")
	callCmd.Flags().String("header", querysig.DefaultHeader, "Signature header name")
	callCmd.Flags().Duration("timeout", 30*time.Second, "Request timeout")
}
