package main

import "syncra/cmd"

func main() {
	cmd.Execute()
}
