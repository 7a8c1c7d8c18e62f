package main

import "github.com/pders01/restodash/cmd"

func main() {
	cmd.Execute()
}
