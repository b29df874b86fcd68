package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/galxe/blobs3/pkg/api"
	"github.com/galxe/blobs3/pkg/common/crypto/signer"
)

var (
	signingKeyPath string
	signingKeyPriv string
	password       string
	signMethod     string
	signTimestamp  int64
)

var signCmd = &cobra.Command{
	Use:   "sign <request-path>",
	Short: "Print authentication headers for a gateway request",
	Long: `Sign a gateway request with a wallet key and print the headers to send.

Signing Key Options:
1. Use keystore file:
   --signing-key-path /path/to/keystore.json --password yourpassword

2. Use private key directly:
   --signing-key-priv 0x123...abc`,
	Args:    cobra.ExactArgs(1),
	PreRunE: validateSignFlags,
	RunE:    runSign,
}

func init() {
	rootCmd.AddCommand(signCmd)
	signCmd.Flags().StringVar(&signingKeyPath, "signing-key-path", "",
		"path to signing keystore file (required if --signing-key-priv is not set)")
	signCmd.Flags().StringVar(&signingKeyPriv, "signing-key-priv", "",
		"ECDSA private key in hex format (required if --signing-key-path is not set)")
	signCmd.Flags().StringVar(&password, "password", "",
		"password for keystore (required only when using --signing-key-path)")
	signCmd.Flags().StringVar(&signMethod, "method", "GET", "HTTP method of the request")
	signCmd.Flags().Int64Var(&signTimestamp, "timestamp", 0, "unix timestamp to sign (now when zero)")
}

// validateSignFlags checks that exactly one key source is given
func validateSignFlags(cmd *cobra.Command, args []string) error {
	if signingKeyPath == "" && signingKeyPriv == "" {
		return fmt.Errorf("either --signing-key-path or --signing-key-priv must be provided")
	}
	if signingKeyPath != "" && signingKeyPriv != "" {
		return fmt.Errorf("cannot use both --signing-key-path and --signing-key-priv at the same time")
	}
	if signingKeyPath != "" && password == "" {
		return fmt.Errorf("--password is required when using --signing-key-path")
	}
	return nil
}

func runSign(cmd *cobra.Command, args []string) error {
	s, err := signer.NewLocalSigner(&signer.Config{
		KeystorePath: signingKeyPath,
		Password:     password,
		PrivateKey:   signingKeyPriv,
	})
	if err != nil {
		return err
	}

	ts := signTimestamp
	if ts == 0 {
		ts = time.Now().Unix()
	}
	sig, err := s.SignRequest(signMethod, args[0], ts)
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]string{
		api.HeaderAddress:   s.GetSigningAddress().Hex(),
		api.HeaderTimestamp: strconv.FormatInt(ts, 10),
		api.HeaderSignature: hexutil.Encode(sig),
	})
}
