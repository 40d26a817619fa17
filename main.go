package main

import "github.com/jsphweid/notescribe/cmd"

func main() {
	cmd.Execute()
}
