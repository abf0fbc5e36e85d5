package main

import (
	"flag"
	"log"

	"WCKV/bootstrap"
)

func main() {
	flag.Parse()
	log.Println("Starting WCKV...")
	if err := bootstrap.Run(); err != nil {
		log.Fatalf("WCKV stopped: %+v", err)
	}
}
