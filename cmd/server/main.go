package main

import "camserver/cmd/server/commands"

func main() {
	commands.Execute()
}
