// Prints the bcrypt hash for a password passed as the first argument.
// Usage: go run ./cmd/genhash 'secret'
package main

import (
	"fmt"
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: genhash <password>")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(os.Args[1]), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("bcrypt error: %v", err)
	}
	fmt.Println(string(h))
}
