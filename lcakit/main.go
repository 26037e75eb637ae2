package main

import (
	"os"

	"github.com/Doomsbay/LCAKit/lcakit/cmd"
)

func main() {
	cmd.Execute(os.Args[1:])
}
