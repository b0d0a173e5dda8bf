package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/sales-etl/internal/domain"
	"github.com/rs/zerolog"
)

// Extraction is the merged output of every extractor in one run.
type Extraction struct {
	Records []Record
	Counts  map[domain.Source]int
	Failed  []domain.Source
}

// ExtractAll runs the extractors one after another and concatenates their
// records. A failing or panicking extractor is logged and contributes nothing;
// the remaining extractors still run. All sources empty is an empty batch.
func ExtractAll(ctx context.Context, log zerolog.Logger, extractors ...Extractor) Extraction {
	ex := Extraction{Counts: make(map[domain.Source]int, len(extractors))}

	for _, e := range extractors {
		src := e.Source()
		recs, err := safeExtract(ctx, e)
		if err != nil {
			log.Warn().Err(err).Str("source", string(src)).Msg("Source unavailable, continuing without it")
			ex.Failed = append(ex.Failed, src)
			if _, ok := ex.Counts[src]; !ok {
				ex.Counts[src] = 0
			}
			continue
		}

		for i := range recs {
			recs[i].Source = src
		}
		ex.Records = append(ex.Records, recs...)
		ex.Counts[src] += len(recs)
		log.Debug().Str("source", string(src)).Int("records", len(recs)).Msg("Source extracted")
	}

	log.Info().Int("records", len(ex.Records)).Int("failed_sources", len(ex.Failed)).Msg("Extraction complete")
	return ex
}

func safeExtract(ctx context.Context, e Extractor) (recs []Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			recs, err = nil, fmt.Errorf("extractor panic: %v", r)
		}
	}()
	return e.Extract(ctx)
}
