package main

import "github.com/nicklasfrahm/pepper/cmd"

func main() {
	cmd.Execute()
}
