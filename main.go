package main

import "github.com/stormalone/reedline/cmd"

func main() {
	cmd.Execute()
}
