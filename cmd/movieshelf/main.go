package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hitoshi/movieshelf/internal/app"
)

func main() {
	if err := app.Run(context.Background(), os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		if !errors.Is(err, app.ErrReported) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}
