package main

import "github.com/kebairia/backhaul/cmd"

func main() {
	cmd.Execute()
}
