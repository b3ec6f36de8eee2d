// Command keygen writes a new merchant RSA key pair. The public key is the
// one registered with Baokim.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mstgnz/gobaokim/baokim"
	"github.com/mstgnz/gobaokim/infra/logger"
)

func main() {
	privatePath := flag.String("private", "keys/merchant_private.pem", "output path of the private key (PKCS#8 PEM)")
	publicPath := flag.String("public", "keys/merchant_public.pem", "output path of the public key (PKIX PEM)")
	bits := flag.Int("bits", baokim.DefaultKeyBits, "RSA key size")
	force := flag.Bool("force", false, "overwrite existing key files")
	flag.Parse()

	if *bits < 2048 {
		logger.Fatal("Key size must be at least 2048 bits", fmt.Errorf("bits=%d", *bits))
	}

	if !*force {
		for _, p := range []string{*privatePath, *publicPath} {
			if _, err := os.Stat(p); err == nil {
				logger.Fatal("Refusing to overwrite "+p+" (use -force)", os.ErrExist)
			}
		}
	}

	if err := baokim.SaveKeyPair(*privatePath, *publicPath, *bits); err != nil {
		logger.Fatal("Failed to generate key pair", err)
	}

	logger.Info("Key pair written", logger.LogContext{
		Operation: "keygen",
		Fields: map[string]any{
			"private_key": *privatePath,
			"public_key":  *publicPath,
			"bits":        *bits,
		},
	})
}
