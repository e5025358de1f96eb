package main

import "github.com/agenthub/agenthub/cmd"

func main() {
	cmd.Execute()
}
