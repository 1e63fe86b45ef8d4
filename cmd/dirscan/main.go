package main

import (
	"os"

	"dirscan/cmd/dirscan/commands"
)

func main() {
	os.Exit(commands.Execute())
}
