package main

import "civicdocs/cmd"

func main() {
	cmd.Execute()
}
