package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/pauamargant/leaseCare-lauzhack/internal/defense"
	"github.com/pauamargant/leaseCare-lauzhack/internal/prompt"
	"github.com/pauamargant/leaseCare-lauzhack/internal/render"
)

func main() {
	inputPath := flag.String("input", "", "Path to a saved pipeline result envelope JSON")
	outputPath := flag.String("output", "defense-report.pdf", "Path to write the PDF")
	markdownPath := flag.String("markdown", "", "Optional path to also write the raw report markdown")
	rubricPath := flag.String("rubric", "", "Optional legal catalogue YAML (defaults to the embedded one)")
	flag.Parse()

	if *inputPath == "" {
		log.Fatal("missing required -input")
	}

	in, err := os.ReadFile(*inputPath)
	if err != nil {
		log.Fatalf("read input: %v", err)
	}
	var res defense.RunResult
	if err := json.Unmarshal(in, &res); err != nil {
		log.Fatalf("decode result envelope: %v", err)
	}
	if res.Report.Markdown == "" {
		log.Fatal("result envelope carries no report markdown")
	}

	if *markdownPath != "" {
		if err := os.WriteFile(*markdownPath, []byte(res.Report.Markdown), 0o644); err != nil {
			log.Fatalf("write markdown: %v", err)
		}
	}

	cat, err := loadCatalogue(*rubricPath)
	if err != nil {
		log.Fatalf("load legal catalogue: %v", err)
	}

	pdf, err := render.NewChromiumRenderer(render.WithCitationResolver(cat)).Render(context.Background(), &res)
	if err != nil {
		log.Fatalf("render pdf: %v", err)
	}
	if err := os.WriteFile(*outputPath, pdf, 0o644); err != nil {
		log.Fatalf("write pdf: %v", err)
	}
	log.Printf("wrote %s (%d bytes)", *outputPath, len(pdf))
}

func loadCatalogue(path string) (*prompt.Catalogue, error) {
	if path == "" {
		return prompt.LoadCatalogue()
	}
	return prompt.LoadCatalogueFile(path)
}
