package main

import "comparison-review/cmd"

func main() {
	cmd.Execute()
}
