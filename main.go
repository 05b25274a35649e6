package main

import "agrimarket/cmd"

func main() {
	cmd.Execute()
}
