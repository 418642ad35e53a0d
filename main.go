package main

import "github.com/encodeous/wisun/cmd"

func main() {
	cmd.Execute()
}
