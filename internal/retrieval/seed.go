package retrieval

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/cloudwego/eino/components/embedding"

	logx "github.com/Chative-core-poc-v1/shopping-agent/pkg/logger"
)

// Upserter is implemented by indexes that accept writes.
type Upserter interface {
	Upsert(ctx context.Context, collection string, id string, vector []float32, payload map[string]any) error
}

// CatalogEntry is one JSONL line of a seed catalog. Fields other than id are
// stored as payload.
type CatalogEntry map[string]any

// SeedCatalog reads a JSONL file and upserts every entry into collection,
// embedding the textField value of each line. It returns the number of
// entries written.
func SeedCatalog(ctx context.Context, idx Upserter, emb embedding.Embedder, collection, path, textField string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	n := 0
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var entry CatalogEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return n, fmt.Errorf("catalog line %d: %w", line, err)
		}
		id := stringify(entry["id"])
		text, _ := entry[textField].(string)
		if id == "" || text == "" {
			logx.Warn().Str("collection", collection).Int("line", line).Msg("skipping catalog entry without id or text")
			continue
		}
		delete(entry, "id")

		vec, err := embedOne(ctx, emb, text)
		if err != nil {
			return n, fmt.Errorf("embed catalog line %d: %w", line, err)
		}
		if err := idx.Upsert(ctx, collection, id, vec, entry); err != nil {
			return n, err
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("read catalog: %w", err)
	}

	logx.Info().Str("collection", collection).Int("entries", n).Msg("catalog seeded")
	return n, nil
}
