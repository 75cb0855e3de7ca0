package main

import "github.com/example/hotel-call-scheduler/cmd"

func main() {
	cmd.Execute()
}
