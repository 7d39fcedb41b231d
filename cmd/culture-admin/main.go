// Package main is the operator CLI for the certificate access server.
// It prepares the credentials the server is configured with: the bcrypt
// hash of the admin API key and the token signing secret.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("culture-admin %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)

	case "hash-key":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: culture-admin hash-key <api-key>")
			os.Exit(1)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(os.Args[2]), bcrypt.DefaultCost)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to hash key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(hash))

	case "gen-secret":
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate secret: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hex.EncodeToString(buf))

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: culture-admin <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  hash-key <api-key>  print the bcrypt hash for admin.api_key_hash")
	fmt.Println("  gen-secret          print a random token signing secret")
	fmt.Println("  version             print version information")
}
