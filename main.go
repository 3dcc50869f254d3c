package main

import "github.com/Tiliavir/ttr/cmd"

func main() {
	cmd.Execute()
}
