package main

import (
	"github.com/lorenzosyku/heating-oil-price-tracker/cmd"
)

func main() {
	cmd.Execute()
}
