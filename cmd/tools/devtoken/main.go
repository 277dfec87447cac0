// Command devtoken issues consultant tokens and hashes service API keys for
// local development.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/noah-isme/atoll-quote/internal/auth"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	consultant := flag.String("consultant", "", "consultant id to issue a token for")
	ttl := flag.Duration("ttl", 8*time.Hour, "token lifetime")
	apiKey := flag.String("hash-api-key", "", "print the SERVICE_API_KEY_HASH for this key and exit")
	flag.Parse()

	if *apiKey != "" {
		hash, err := auth.HashAPIKey(*apiKey)
		if err != nil {
			log.Fatalf("Failed to hash api key: %v", err)
		}
		fmt.Println(hash)
		return
	}

	if *consultant == "" {
		log.Fatal("-consultant is required")
	}
	verifier, err := auth.NewVerifier(auth.Config{
		Secret:   os.Getenv("JWT_SECRET"),
		Issuer:   os.Getenv("JWT_ISSUER"),
		Audience: os.Getenv("JWT_AUDIENCE"),
	})
	if err != nil {
		log.Fatalf("Failed to configure verifier: %v", err)
	}
	token, expires, err := verifier.IssueToken(*consultant, *ttl)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}
	fmt.Println(token)
	log.Printf("Token for %s expires at %s", *consultant, expires.Format(time.RFC3339))
}
