package main

import "github.com/nextlevelbuilder/gitchat/cmd"

func main() {
	cmd.Execute()
}
