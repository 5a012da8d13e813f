package main

import "github.com/snapgrab/snapgrab/cmd/snapgrab/commands"

func main() {
	commands.Execute()
}
