package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/MeKo-Tech/nutrigood/cmd/nutrigood/cmd"
	"github.com/joho/godotenv"
)

func main() {
	// An optional .env in the working directory can set NUTRIGOOD_*
	// variables. Variables already in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}
	cmd.Execute()
}
