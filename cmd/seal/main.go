package main

import (
	"os"

	"github.com/duncanmcclean/guest-entries/internal/sealtool"
)

func main() {
	os.Exit(sealtool.Main(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
