package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gatehouse-id/gatehouse/internal/security/password"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run hash_secret.go <plaintext_secret>")
	}

	plaintext := os.Args[1]
	phc, err := password.Hash(password.Default, plaintext)
	if err != nil {
		log.Fatalf("Hashing failed: %v", err)
	}

	fmt.Printf("Plaintext: %s\n", plaintext)
	fmt.Printf("Hash:      %s\n", phc)
}
