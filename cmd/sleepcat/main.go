package main

import "github.com/yourname/sleepcat/cmd/sleepcat/root"

func main() {
	root.Execute()
}
