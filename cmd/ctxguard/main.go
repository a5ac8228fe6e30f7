package main

import (
	"log"

	"github.com/ctxguard/ctxguard/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Fatal(err)
	}
}
