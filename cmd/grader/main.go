// Command grader is a CLI demo consumer of the grading pipeline: it
// reads one or more page images from disk, grades the worksheet they
// form, and prints the resulting GradingResult as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"dictationgrader/internal/config"
	"dictationgrader/internal/grading"
	"dictationgrader/internal/preprocess"
	"dictationgrader/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s page1.jpg [page2.jpg ...]", os.Args[0])
	}

	cfg := config.Load()

	var delegate store.Delegate
	if cfg.DatabaseURL != "" {
		d, err := store.Open(cfg)
		if err != nil {
			log.Fatalf("store.Open: %v", err)
		}
		defer d.Close()
		delegate = d
	} else {
		log.Printf("DATABASE_URL not set; annotated pages will not be persisted")
	}

	pipeline, err := grading.New(cfg, delegate)
	if err != nil {
		log.Fatalf("grading.New: %v", err)
	}

	blobs := make([]preprocess.Blob, 0, len(os.Args)-1)
	for _, path := range os.Args[1:] {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("read %s: %v", path, err)
		}
		blobs = append(blobs, preprocess.Blob{Data: data})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.OverallTimeoutSeconds)*time.Second)
	defer cancel()

	result, err := pipeline.Grade(ctx, blobs, grading.GradingOptions{SaveRawArtifacts: cfg.DebugSaveRaw})
	if err != nil {
		log.Fatalf("grade: %v", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("marshal result: %v", err)
	}
	fmt.Println(string(out))
}
