package main

import "github.com/numgate/numgate/cmd"

func main() {
	cmd.Execute()
}
