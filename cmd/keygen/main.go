package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathanprocter/therapyflow-router/internal/auth"
)

func main() {
	name := flag.String("name", "", "human-friendly key name (required)")
	env := flag.String("env", "prod", "environment prefix")
	id := flag.String("id", "", "key ID (optional, generated when omitted)")
	rpm := flag.Int("rpm", 0, "per-key RPM limit (0 = platform default)")
	daily := flag.Int("daily", 0, "per-key daily dispatch limit (0 = unlimited)")
	flag.Parse()

	if *name == "" {
		flag.Usage()
		fmt.Fprintln(os.Stderr, "\nerror: -name is required")
		os.Exit(1)
	}

	rawKey, err := auth.GenerateKey(*env)
	if err != nil {
		log.Fatalf("failed to generate key: %v", err)
	}

	keyHash := auth.HashKey(rawKey)
	keyPrefix := auth.KeyPrefix(rawKey)

	keyID := *id
	if keyID == "" {
		keyID = "key_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	}

	fmt.Println("=== TherapyFlow API Key Generated ===")
	fmt.Println()
	fmt.Printf("  Key ID:     %s\n", keyID)
	fmt.Printf("  Key Prefix: %s\n", keyPrefix)
	fmt.Printf("  Name:       %s\n", *name)
	fmt.Println()
	fmt.Println("  API Key (save this, only the hash is stored):")
	fmt.Printf("  %s\n", rawKey)
	fmt.Println()
	fmt.Println("  Add to the auth.keys list in router.yaml:")
	fmt.Println()
	fmt.Println("    - id: " + keyID)
	fmt.Printf("      name: %q\n", *name)
	fmt.Println("      key_hash: " + keyHash)
	if *rpm > 0 {
		fmt.Printf("      rpm_limit: %d\n", *rpm)
	}
	if *daily > 0 {
		fmt.Printf("      daily_dispatch_limit: %d\n", *daily)
	}
	fmt.Println()
	fmt.Println("=====================================")
}
