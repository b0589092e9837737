// The main package for the mediascraper executable.
package main

import (
	"github.com/scrapeworks/mediascraper/cmd"
)

func main() {
	cmd.Execute()
}
