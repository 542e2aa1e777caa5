package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"
)

// Generates the secrets the service needs at deploy time: a JWT signing
// secret, an admin API key and the bcrypt hash of that key. Only the hash
// goes into configuration.
func main() {
	fmt.Println("===========================================")
	fmt.Println("Secret Generator for RouteMate Booking")
	fmt.Println("===========================================")
	fmt.Println()

	jwtSecret, err := randomSecret(48)
	if err != nil {
		log.Fatalf("Failed to generate JWT secret: %v", err)
	}

	adminKey, err := randomSecret(32)
	if err != nil {
		log.Fatalf("Failed to generate admin API key: %v", err)
	}

	adminKeyHash, err := bcrypt.GenerateFromPassword([]byte(adminKey), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash admin API key: %v", err)
	}

	fmt.Println("Add these to your .env file or deployment secrets:")
	fmt.Println()
	fmt.Printf("JWT_SECRET=%s\n", jwtSecret)
	fmt.Printf("ADMIN_API_KEY_HASH=%s\n", string(adminKeyHash))
	fmt.Println()
	fmt.Println("Hand this key to the operator; it is not stored anywhere:")
	fmt.Println()
	fmt.Printf("X-Admin-Key: %s\n", adminKey)
	fmt.Println()
	fmt.Println("Keep these safe and never commit them to version control.")
	fmt.Println("===========================================")
}

func randomSecret(bytes int) (string, error) {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
