package main

import "mutegate/server"

func main() {
	server.Main()
}
