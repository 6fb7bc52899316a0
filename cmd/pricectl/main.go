package main

import (
	"os"

	"github.com/odyssey-erp/pricedesk/cmd/pricectl/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
