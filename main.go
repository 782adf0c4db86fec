package main

import "github.com/osschat/termchat/cmd"

func main() {
	cmd.Execute()
}
