package main

import "github.com/SafeMPC/aa-keyring/cmd"

func main() {
	cmd.Execute()
}
