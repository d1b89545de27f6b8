/**
 * seedrefs - reference template enrollment tool
 *
 * Enrolls document reference images into the verifier store so the worker
 * has templates to match against. Images are copied under the worker data
 * directory and registered with their document type, version and optional
 * metadata (watermark zones and similar template annotations).
 *
 * Usage:
 *   seedrefs -dir ./references -type coo -version 2021
 *   seedrefs -image form.png -type invoice -meta meta.json
 */

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/ncsverify/verifier-worker/internal/config"
	"github.com/ncsverify/verifier-worker/internal/imaging"
	"github.com/ncsverify/verifier-worker/internal/pipeline"
	"github.com/ncsverify/verifier-worker/internal/storage"
)

func main() {
	var (
		dir      = flag.String("dir", "", "directory of reference images to enroll")
		imageArg = flag.String("image", "", "single reference image to enroll")
		docType  = flag.String("type", "", "document type for the enrolled templates (required)")
		version  = flag.String("version", "1", "template version label")
		metaPath = flag.String("meta", "", "JSON file with template metadata (applied to every image)")
	)
	flag.Parse()

	if *docType == "" {
		log.Fatalf("-type is required")
	}
	if (*dir == "") == (*imageArg == "") {
		log.Fatalf("exactly one of -dir or -image is required")
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	metadata := map[string]interface{}{}
	if *metaPath != "" {
		data, err := os.ReadFile(*metaPath)
		if err != nil {
			log.Fatalf("Failed to read metadata file: %v", err)
		}
		if err := json.Unmarshal(data, &metadata); err != nil {
			log.Fatalf("Failed to parse metadata file: %v", err)
		}
	}

	references, closeStore, err := openReferenceStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer closeStore()

	paths, err := collectImages(*dir, *imageArg)
	if err != nil {
		log.Fatalf("Failed to collect images: %v", err)
	}
	if len(paths) == 0 {
		log.Fatalf("No images found to enroll")
	}

	ctx := context.Background()
	enrolled := 0
	for _, path := range paths {
		id, err := enroll(ctx, references, cfg, path, *docType, *version, metadata)
		if err != nil {
			log.Printf("Skipping %s: %v", path, err)
			continue
		}
		log.Printf("Enrolled %s as %s (type=%s, version=%s)", filepath.Base(path), id, *docType, *version)
		enrolled++
	}
	log.Printf("Done: %d of %d images enrolled", enrolled, len(paths))
}

func openReferenceStore(cfg *config.Config) (pipeline.ReferenceStore, func() error, error) {
	if cfg.StorageDriver == "postgres" {
		store, err := storage.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store.References(), store.Close, nil
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, nil, err
	}
	store, err := storage.NewBoltStore(cfg.BoltPath)
	if err != nil {
		return nil, nil, err
	}
	return store.References(), store.Close, nil
}

func collectImages(dir, single string) ([]string, error) {
	if single != "" {
		return []string{single}, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	return paths, nil
}

// enroll validates the image, copies it into the worker data directory and
// registers the template.
func enroll(ctx context.Context, references pipeline.ReferenceStore, cfg *config.Config, path, docType, version string, metadata map[string]interface{}) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if _, err := imaging.Decode(data); err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	id := uuid.New().String()
	refDir := filepath.Join(cfg.DataDir, "references")
	if err := os.MkdirAll(refDir, 0755); err != nil {
		return "", fmt.Errorf("create reference directory: %w", err)
	}
	dest := filepath.Join(refDir, id+strings.ToLower(filepath.Ext(path)))
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return "", fmt.Errorf("copy image: %w", err)
	}

	ref := &pipeline.ReferenceTemplate{
		ID:        id,
		DocType:   docType,
		Version:   version,
		Metadata:  metadata,
		ImagePath: dest,
		CreatedAt: time.Now().UTC(),
	}
	if err := references.Add(ctx, ref); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("register template: %w", err)
	}
	return id, nil
}
