package main

import "dwhload/cmd"

func main() {
	cmd.Execute()
}
