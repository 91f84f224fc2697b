package main

import "github.com/wmbridge/wmbridge/cmd/wmbridge/commands"

func main() {
	commands.Execute()
}
