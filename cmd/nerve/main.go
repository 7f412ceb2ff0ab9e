package main

import (
	"github.com/balaji-balu/nerve-cli/cmd/nerve/cli/cmd"
)

func main() {
	cmd.Execute()
}
