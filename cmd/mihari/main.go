package main

import (
	"github.com/shizukutanaka/Mihari/cmd/mihari/commands"
)

func main() {
	commands.Execute()
}
