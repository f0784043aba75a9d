package main

import "github.com/classeye/classeye/cmd"

func main() {
	cmd.Execute()
}
