package main

import "github.com/keanucz/audioconv/cmd"

func main() {
	cmd.Execute()
}
