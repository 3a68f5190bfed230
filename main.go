package main

import "github.com/blackshadow-software/face-auth/cmd"

func main() {
	cmd.Execute()
}
