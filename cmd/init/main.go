package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"bridge/agent/internal/config"
	"bridge/agent/internal/stores"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/term"
)

// Seeds the agent's keystore. With -new a fresh key is generated; otherwise the
// key is read from BRIDGE_IMPORT_PRIVATE_KEY or prompted for without echo.
func main() {
	configPath := flag.String("config", "", "path to a config file overriding the embedded defaults")
	generate := flag.Bool("new", false, "generate a new key instead of importing one")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	password := cfg.Wallet.Password
	if password == "" {
		pw, err := prompt("Keystore password: ")
		if err != nil {
			log.Fatalf("%v", err)
		}
		password = pw
	}

	keyStore, err := stores.NewLocalKeyStore(password, cfg.Wallet.KeystorePath)
	if err != nil {
		log.Fatalf("failed to open keystore: %v", err)
	}

	if *generate {
		addr, err := keyStore.Create()
		if err != nil {
			log.Fatalf("key generation failed: %v", err)
		}
		log.Printf("generated key, address %s", addr)
		return
	}

	hexKey := os.Getenv("BRIDGE_IMPORT_PRIVATE_KEY")
	if hexKey == "" {
		hexKey, err = prompt("Private key (hex): ")
		if err != nil {
			log.Fatalf("%v", err)
		}
	}
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		log.Fatalf("failed to parse private key: %v", err)
	}
	addr, err := keyStore.Import(privateKey)
	if err != nil {
		log.Fatalf("import failed: %v", err)
	}

	log.Printf("imported private key, address %s", addr)
}

func prompt(label string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("%sstdin is not a terminal", strings.ToLower(label))
	}
	fmt.Fprint(os.Stderr, label)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
