// Package main implements a synthetic corpus generator: it produces a
// folder of plain-text and KVJSON fixture files so the translate
// command (or its tests) can be exercised without a real game/app
// corpus on hand.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("corpusgen", flag.ExitOnError)

	outDir := fs.String("out", "", "output folder for the generated corpus")
	numFiles := fs.Int("files", 3, "number of files to generate per format")
	linesPerFile := fs.Int("lines", 20, "number of lines/entries per file")
	seed := fs.Int64("seed", 1, "random seed")
	multiLineRatio := fs.Float64("multiline-ratio", 0.2, "fraction of KVJSON entries that span multiple lines")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	if *outDir == "" {
		return fmt.Errorf("-out is required")
	}

	r := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output folder: %w", err)
	}

	for i := 0; i < *numFiles; i++ {
		path := filepath.Join(*outDir, fmt.Sprintf("dialogue_%02d.txt", i))
		if err := writePlainFile(r, path, *linesPerFile); err != nil {
			return err
		}
	}

	for i := 0; i < *numFiles; i++ {
		path := filepath.Join(*outDir, fmt.Sprintf("strings_%02d.json", i))
		if err := writeKVJSONFile(r, path, *linesPerFile, *multiLineRatio); err != nil {
			return err
		}
	}

	fmt.Printf("Generated %d files (%d lines each) under %s\n", *numFiles*2, *linesPerFile, *outDir)
	return nil
}

var sentenceTemplates = []string{
	"The %s walked toward the %s.",
	"Without a word, the %s vanished into the %s.",
	"\"Is this the way to the %s?\" asked the %s.",
	"The old %s had seen many %s come and go.",
	"Legends spoke of a %s hidden beyond the %s.",
}

var nouns = []string{
	"hero", "village", "forest", "castle", "merchant", "dragon", "river",
	"knight", "market", "shrine", "traveler", "mountain", "harbor", "mage",
}

func randomSentence(r *rand.Rand) string {
	tmpl := sentenceTemplates[r.Intn(len(sentenceTemplates))]
	a := nouns[r.Intn(len(nouns))]
	b := nouns[r.Intn(len(nouns))]
	return fmt.Sprintf(tmpl, a, b)
}

func writePlainFile(r *rand.Rand, path string, lines int) error {
	out := make([]string, lines)
	for i := range out {
		out[i] = randomSentence(r)
	}
	content := ""
	for i, line := range out {
		if i > 0 {
			content += "\n"
		}
		content += line
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func writeKVJSONFile(r *rand.Rand, path string, entries int, multiLineRatio float64) error {
	obj := make(map[string]string, entries)
	for i := 0; i < entries; i++ {
		key := fmt.Sprintf("key_%04d", i)
		if r.Float64() < multiLineRatio {
			numLines := 2 + r.Intn(3)
			lines := make([]string, numLines)
			for j := range lines {
				lines[j] = randomSentence(r)
			}
			value := ""
			for j, line := range lines {
				if j > 0 {
					value += "\n"
				}
				value += line
			}
			obj[key] = value
		} else {
			obj[key] = randomSentence(r)
		}
	}

	data, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
