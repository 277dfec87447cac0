// Command refcheck validates a reference data snapshot before it is deployed.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/joho/godotenv"

	"github.com/noah-isme/atoll-quote/internal/refdata"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	path := flag.String("file", os.Getenv("REFDATA_PATH"), "reference data JSON file")
	flag.Parse()
	if *path == "" {
		log.Fatal("no reference data file: pass -file or set REFDATA_PATH")
	}

	store, err := refdata.LoadFile(*path)
	if err != nil {
		log.Fatalf("Reference data rejected: %v", err)
	}

	counts := store.Counts()
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%-24s %d\n", name, counts[name])
	}
	fmt.Printf("checksum %s\n", store.Checksum())
}
