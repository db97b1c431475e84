package main

import "github.com/jmehdipour/restaurant-crm/cmd"

func main() {
	cmd.Execute()
}
