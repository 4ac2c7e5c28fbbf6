package main

import (
	"github.com/dragonhoard/dragon/cmd/dragon/cmd"
)

func main() {
	cmd.Execute()
}
