package main

import "media-harvest/cmd"

func main() {
	cmd.Execute()
}
