// Command hashpassword prints an Argon2id hash for ADMIN_PASSWORD_HASH.
//
//	go run ./cmd/hashpassword 's3cret'
package main

import (
	"fmt"
	"log"
	"os"

	httpserver "github.com/qanuni/legalai/internal/adapter/httpserver"
)

func main() {
	if len(os.Args) != 2 || os.Args[1] == "" {
		log.Fatal("usage: hashpassword <password>")
	}
	hash, err := httpserver.HashPassword(os.Args[1], httpserver.DefaultArgon2Params)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(hash)
}
