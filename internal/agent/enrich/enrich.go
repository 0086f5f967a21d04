// Package enrich resolves the items referenced by a final answer to the
// catalog data returned to the caller.
package enrich

import (
	"context"
	"strings"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/model"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/retrieval"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/telemetry"
	logx "github.com/Chative-core-poc-v1/shopping-agent/pkg/logger"
)

// Lookup fetches catalog records by id. *retrieval.Engine implements it.
type Lookup interface {
	Get(ctx context.Context, collection, id string) (*retrieval.Record, error)
}

type Enricher struct {
	lookup     Lookup
	collection string
	imageField string
	priceField string
	sink       *telemetry.Sink
}

func NewEnricher(lookup Lookup, cfg model.RetrievalConfig, sink *telemetry.Sink) *Enricher {
	e := &Enricher{
		lookup:     lookup,
		collection: cfg.ItemsCollection,
		imageField: cfg.ImageField,
		priceField: cfg.PriceField,
		sink:       sink,
	}
	if e.imageField == "" {
		e.imageField = "first_large_image"
	}
	if e.priceField == "" {
		e.priceField = "price"
	}
	return e
}

// Enrich returns one entry per distinct referenced id that resolves to an
// item with an image, in reference order. Unknown ids, items without an
// image and lookup failures are skipped.
func (e *Enricher) Enrich(ctx context.Context, items []model.ReferencedItem) []model.UsedImage {
	ctx, span := e.sink.Start(ctx, "enrich_references", telemetry.KindRetriever)
	out := make([]model.UsedImage, 0, len(items))
	defer func() { span.End(nil, map[string]any{"referenced": len(items), "resolved": len(out)}) }()

	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if item.ID == "" || seen[item.ID] {
			continue
		}
		seen[item.ID] = true

		rec, err := e.lookup.Get(ctx, e.collection, item.ID)
		if err != nil {
			logx.Ctx(ctx).Warn().Err(err).Str("item_id", item.ID).Msg("enrichment lookup failed, dropping item")
			continue
		}
		if rec == nil {
			logx.Ctx(ctx).Debug().Str("item_id", item.ID).Msg("referenced item not in catalog")
			continue
		}
		image, _ := rec.Payload[e.imageField].(string)
		if image = strings.TrimSpace(image); image == "" {
			continue
		}
		out = append(out, model.UsedImage{
			ImageURL:    image,
			Price:       retrieval.PriceOf(rec.Payload[e.priceField]),
			Description: item.Description,
		})
	}
	return out
}
