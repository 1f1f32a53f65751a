package main

import (
	"os"

	"twlaunch/cmd/twlaunch/cmd"
)

func main() {
	os.Exit(cmd.Execute(os.Args[1:], os.Stdout, os.Stderr, &cmd.Config{}))
}
