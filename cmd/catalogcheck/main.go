// Command catalogcheck loads a brand catalogue file and prints the sourcing
// hints for the given product text.
//
//	go run ./cmd/catalogcheck -file data/brand_sources.json "La Roche-Posay Effaclar"
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"linky/internal/sourcing"

	"github.com/rs/zerolog"
)

func main() {
	path := flag.String("file", "data/brand_sources.json", "catalogue file (.json or .json.gz)")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	catalog, err := sourcing.NewFileLoader(logger).Load(context.Background(), *path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load catalogue: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d brands from %s\n", catalog.Size(), *path)

	query := strings.Join(flag.Args(), " ")
	if query == "" {
		return
	}

	hints := catalog.Match(query, query)
	if len(hints) == 0 {
		fmt.Println("No brand matched")
		return
	}
	for _, h := range hints {
		fmt.Printf("\n%s (%s), matched %q\n", h.Brand, h.Country, h.Matched)
		for i, s := range h.Sites {
			fmt.Printf("  - %-20s %s\n", s.Label, h.Searches[i])
		}
	}
}
