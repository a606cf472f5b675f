package main

import (
	"github.com/user/infercore/cmd"
)

func main() {
	cmd.Execute()
}
