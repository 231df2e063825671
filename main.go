package main

import "github.com/example/rekognizer/cmd"

func main() {
	cmd.Execute()
}
