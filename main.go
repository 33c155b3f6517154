package main

import "github.com/guntarion/convlog/cmd"

func main() {
	cmd.Execute()
}
