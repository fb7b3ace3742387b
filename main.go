package main

import (
	"github.com/anoixa/mediastore/cmd"
)

func main() {
	cmd.Execute()
}
