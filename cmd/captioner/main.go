// Command captioner walks a directory of product images, asks a vision
// model for a short caption per image, and writes the results as JSONL.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/prodshot/backdrop/internal/utils"
	"github.com/prodshot/backdrop/pkg/imgio"
	"github.com/prodshot/backdrop/pkg/ollama"
)

type captionRecord struct {
	Image   string `json:"image"`
	Caption string `json:"caption"`
}

func main() {
	var dir, out, model, url string
	flag.StringVar(&dir, "dir", "", "directory of images to caption")
	flag.StringVar(&out, "out", "captions.jsonl", "output JSONL file")
	flag.StringVar(&model, "model", "llava", "vision model name")
	flag.StringVar(&url, "url", "http://localhost:11434", "ollama server URL")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if dir == "" {
		log.Fatal().Msgf("usage: %s -dir images/ [-out captions.jsonl] [-model llava]", filepath.Base(os.Args[0]))
	}

	cli, err := ollama.NewClient(url)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create ollama client")
	}

	files, err := utils.ListImageFiles(dir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", dir).Msg("failed to list images")
	}
	if len(files) == 0 {
		log.Fatal().Str("dir", dir).Msg("no image files found")
	}

	f, err := os.Create(out)
	if err != nil {
		log.Fatal().Err(err).Str("path", out).Msg("failed to create output file")
	}
	defer f.Close()
	enc := json.NewEncoder(f)

	ctx := context.Background()
	captioned := 0
	for _, path := range files {
		img, err := imgio.LoadImage(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("skipping unreadable image")
			continue
		}

		caption, err := cli.Caption(ctx, model, img)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("captioning failed")
			continue
		}

		if err := enc.Encode(captionRecord{Image: path, Caption: caption}); err != nil {
			log.Fatal().Err(err).Msg("failed to write record")
		}
		captioned++
		log.Info().Str("path", path).Str("caption", caption).Msg("captioned")
	}

	log.Info().Int("captioned", captioned).Int("total", len(files)).Str("out", out).Msg("done")
}
