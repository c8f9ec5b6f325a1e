package main

import (
	"github.com/findy-network/findy-triangle/cmd"
)

func main() {
	cmd.Execute()
}
