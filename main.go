package main

import "tracehound/cmd"

func main() {
	cmd.Execute()
}
