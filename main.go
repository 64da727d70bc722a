package main

import "github.com/carlbunn/musicbox/cmd"

func main() {
	cmd.Execute()
}
