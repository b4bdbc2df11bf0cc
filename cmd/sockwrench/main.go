package main

import (
	"github.com/julienstroheker/sockwrench/wrench/cmd"
)

func main() {
	cmd.Execute()
}
