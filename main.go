package main

import "github.com/VertyyBird/Reddit-Archiver/cmd"

func main() {
	cmd.Execute()
}
