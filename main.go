// The main package for the ogrelay executable.
package main

import (
	"github.com/JakeFAU/ogrelay/cmd"
)

func main() {
	cmd.Execute()
}
