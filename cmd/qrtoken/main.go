package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/transportops/field-service-api/internal/platform/auth/qrtoken"
)

// Dev/ops tool: mint a signed QR token for a customer.
//
// The secret must match the API deployment's QR_HMAC_SECRET, otherwise the
// minted token will not verify.
func main() {
	customer := flag.String("customer", "", "customer id to bind the token to (required)")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	secret := flag.String("secret", "", "HMAC secret (defaults to QR_HMAC_SECRET)")
	flag.Parse()

	if *customer == "" {
		flag.Usage()
		log.Fatalf("missing -customer")
	}

	s := *secret
	if s == "" {
		s = os.Getenv("QR_HMAC_SECRET")
	}

	signer, err := qrtoken.New(s)
	if err != nil {
		log.Fatalf("signer: %v (set -secret or QR_HMAC_SECRET)", err)
	}

	token, err := signer.Mint(*customer, *ttl)
	if err != nil {
		log.Fatalf("mint: %v", err)
	}
	fmt.Println(token)
}
