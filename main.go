package main

import "github.com/vibast-solutions/ms-go-bookings/cmd"

func main() {
	cmd.Execute()
}
