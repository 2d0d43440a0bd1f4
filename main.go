package main

import "github.com/verita-sec/verita/cmd"

func main() {
	cmd.Execute()
}
