package main

import (
	"log"

	"rifa/cmd"
	_ "rifa/migrations"
)

func main() {
	if err := cmd.Start(); err != nil {
		log.Fatal(err)
	}
}
