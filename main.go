// The main package for the farascraper executable.
package main

import (
	"github.com/JakeFAU/fara-crawler/cmd"
)

func main() {
	cmd.Execute()
}
