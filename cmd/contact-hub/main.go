package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/vibe-coding-testes/contact-hub-zen/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("contact-hub: exiting")
		os.Exit(1)
	}
}
