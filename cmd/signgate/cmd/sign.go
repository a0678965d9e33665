package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vitalvas/signgate/querysig"
)

// privateKeyEnv names the environment variable read when --private-key is
// not given.
const privateKeyEnv = "SIGNGATE_PRIVATE_KEY"

var signCmd = &cobra.Command{
	Use:   "sign --query <query>",
	Short: "Sign a query string",
	Long: `The sign command signs a raw query string with a base64 PKCS#8 RSA private
key and prints the final query and the base64 signature to send in the
signature header. With --recv-window, recvWindow and timestamp are appended
when missing.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		query, _ := cmd.Flags().GetString("query")
		recvWindow, _ := cmd.Flags().GetDuration("recv-window")

		signer, err := loadSigner(cmd)
		if err != nil {
			return err
		}

		if recvWindow > 0 {
			query, err = querysig.StampQuery(query, recvWindow, time.Now())
			if err != nil {
				return err
			}
		}

		signature, err := querysig.SignQuery(signer, query)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "query:     %s\n", query)
		fmt.Fprintf(out, "signature: %s\n", signature)

		return nil
	},
}

func init() {
	addPrivateKeyFlag(signCmd)
	signCmd.Flags().String("query", "", "Raw query string to sign (required)")
	signCmd.Flags().Duration("recv-window", 0, "Append recvWindow and timestamp with this window")
	_ = signCmd.MarkFlagRequired("query")
}

func addPrivateKeyFlag(cmd *cobra.Command) {
	cmd.Flags().String("private-key", "", "base64 PKCS#8 RSA private key (default $"+privateKeyEnv+")")
}

func loadSigner(cmd *cobra.Command) (querysig.Signer, error) {
	encoded, _ := cmd.Flags().GetString("private-key")
	if encoded == "" {
		encoded = os.Getenv(privateKeyEnv)
	}

	if encoded == "" {
		return nil, fmt.Errorf("private key is required: use --private-key or $%s", privateKeyEnv)
	}

	key, err := querysig.ParsePrivateKey(encoded)
	if err != nil {
		return nil, err
	}

	return querysig.NewSigner(key)
}
