package main

import "github.com/zapista/zapista/cmd"

func main() {
	cmd.Execute()
}
