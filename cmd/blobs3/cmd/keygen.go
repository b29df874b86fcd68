package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	keygenDir      string
	keygenPassword string
	keygenLight    bool
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a wallet keystore for signing gateway requests",
	Args:  cobra.NoArgs,
	RunE:  runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVar(&keygenDir, "dir", "./keys", "directory to write the keystore file to")
	keygenCmd.Flags().StringVar(&keygenPassword, "password", "", "password to encrypt the keystore")
	keygenCmd.Flags().BoolVar(&keygenLight, "light-kdf", false, "use light scrypt parameters")
	_ = keygenCmd.MarkFlagRequired("password")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	if err := os.MkdirAll(keygenDir, 0o700); err != nil {
		return fmt.Errorf("failed to create keys directory: %w", err)
	}

	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return fmt.Errorf("failed to generate ECDSA key: %w", err)
	}
	key := &keystore.Key{
		Id:         uuid.New(),
		Address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		PrivateKey: privateKey,
	}

	scryptN, scryptP := keystore.StandardScryptN, keystore.StandardScryptP
	if keygenLight {
		scryptN, scryptP = keystore.LightScryptN, keystore.LightScryptP
	}
	keyJSON, err := keystore.EncryptKey(key, keygenPassword, scryptN, scryptP)
	if err != nil {
		return fmt.Errorf("failed to encrypt key: %w", err)
	}

	filename := filepath.Join(keygenDir, key.Address.Hex()+".key.json")
	if err := os.WriteFile(filename, keyJSON, 0o600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return printJSON(cmd, map[string]string{
		"address":  key.Address.Hex(),
		"key_file": filename,
	})
}
