package main

import (
	"flag"
	"log"
	"os"

	"kyri56xcaesar/nexushub/internal/api"
)

func main() {
	confPath := flag.String("c", "", "path to the .env configuration file")
	flag.Parse()

	path := *confPath
	if path == "" {
		path = os.Getenv("CONFIG")
	}
	if path == "" {
		path = "configs/nexushub.env"
	}

	log.Printf("[INFO] starting nexushub with config %s", path)
	api.InitAndServe(path)
}
