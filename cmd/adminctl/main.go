package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"food-admin/cmd/adminctl/cli"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
