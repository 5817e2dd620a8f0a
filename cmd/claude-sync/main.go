package main

import "github.com/mkravchenko/claude-sync/cmd/claude-sync/cmd"

func main() {
	cmd.Execute()
}
