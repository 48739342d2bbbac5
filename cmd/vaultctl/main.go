package main

import (
	"flag"
	"fmt"
	"os"

	"vaultusd/cmd/internal/passphrase"
	"vaultusd/config"
	"vaultusd/crypto"
)

const (
	keygenCommand  = "keygen"
	addressCommand = "address"
	initCommand    = "init"
	defaultPassEnv = "VUSD_GOVERNOR_PASS"
	defaultConfig  = "./config.toml"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case keygenCommand:
		runKeygen(os.Args[2:])
	case addressCommand:
		runAddress(os.Args[2:])
	case initCommand:
		runInit(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func runKeygen(args []string) {
	fs := flag.NewFlagSet(keygenCommand, flag.ExitOnError)
	keystorePath := fs.String("keystore", "governor.keystore", "Output path for the generated keystore file")
	passEnv := fs.String("pass-env", defaultPassEnv, "Environment variable containing the keystore passphrase")
	force := fs.Bool("force", false, "Overwrite an existing keystore file")
	fs.Parse(args)

	if err := keygen(*keystorePath, *passEnv, *force); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func keygen(keystorePath, passEnv string, force bool) error {
	if !force {
		if _, err := os.Stat(keystorePath); err == nil {
			return fmt.Errorf("keystore file %s already exists (use --force to overwrite)", keystorePath)
		} else if !os.IsNotExist(err) {
			return err
		}
	}

	pass, err := passphrase.NewSource(passEnv).Get()
	if err != nil {
		return err
	}

	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	if err := crypto.SaveToKeystore(keystorePath, key, pass); err != nil {
		return fmt.Errorf("failed to write keystore: %w", err)
	}

	fmt.Printf("Wrote keystore to %s\n", keystorePath)
	fmt.Printf("Address: %s\n", key.PubKey().Address())
	return nil
}

func runAddress(args []string) {
	fs := flag.NewFlagSet(addressCommand, flag.ExitOnError)
	keystorePath := fs.String("keystore", "governor.keystore", "Path to the keystore file")
	passEnv := fs.String("pass-env", defaultPassEnv, "Environment variable containing the keystore passphrase")
	fs.Parse(args)

	pass, err := passphrase.NewSource(*passEnv).Get()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	key, err := crypto.LoadFromKeystore(*keystorePath, pass)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: unable to decrypt keystore %s: %v\n", *keystorePath, err)
		os.Exit(1)
	}
	fmt.Println(key.PubKey().Address())
}

func runInit(args []string) {
	fs := flag.NewFlagSet(initCommand, flag.ExitOnError)
	configPath := fs.String("config", defaultConfig, "Path for the generated configuration file")
	fs.Parse(args)

	if _, err := os.Stat(*configPath); err == nil {
		fmt.Fprintf(os.Stderr, "Error: config file %s already exists\n", *configPath)
		os.Exit(1)
	} else if !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s and %s\n", *configPath, cfg.GovernorKeystorePath)
	fmt.Printf("Governor: %s\n", cfg.Governor)
}

func usage() {
	fmt.Println("vaultctl <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Printf("  %s     Generate a governor key and write an encrypted keystore\n", keygenCommand)
	fmt.Printf("  %s    Print the address held in a keystore file\n", addressCommand)
	fmt.Printf("  %s       Write a default node configuration with a fresh governor key\n", initCommand)
}
