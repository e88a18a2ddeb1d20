package main

import (
	"os"

	"github.com/juanfranblanco/vscode-solidity-sub001/cmd"
)

func main() {
	code := cmd.Execute()
	os.Exit(code)
}
