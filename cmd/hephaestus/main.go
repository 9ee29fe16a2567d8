package main

import "github.com/hephaestus-forge/hephaestus/cmd/hephaestus/cmd"

func main() {
	cmd.Execute()
}
