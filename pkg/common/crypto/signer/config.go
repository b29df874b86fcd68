package signer

// Config represents signer configuration
type Config struct {
	// KeystorePath is the path to an encrypted keystore file
	KeystorePath string
	// Password is the password to decrypt the keystore
	Password string
	// PrivateKey is a hex private key, used when no keystore is given
	PrivateKey string
}

// IsValid checks if the config names exactly one key source
func (c *Config) IsValid() bool {
	if c.KeystorePath != "" {
		return c.PrivateKey == ""
	}
	return c.PrivateKey != ""
}
