package main

import (
	server "github.com/carelink/backend/cmd/server"
)

func main() {
	s := server.NewServer()
	s.Run()
}
