package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"researchhub/models"
	"researchhub/objstore"
)

// RecordKey is the stats bucket object name for a paper.
func RecordKey(paperID string) string {
	return paperID + ".json"
}

// LoadRecords lists the stats bucket and downloads every record, keyed by paper ID.
// Only a listing failure is returned; unreadable records are logged and skipped.
func LoadRecords(ctx context.Context, bucket objstore.Bucket, limit int) (map[string]models.StatRecord, error) {
	if bucket == nil {
		return nil, models.ErrStoreUnavailable
	}

	entries, err := bucket.List(ctx, "", objstore.ListOptions{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrListFailure, bucket.Name(), err)
	}

	records := make(map[string]models.StatRecord, len(entries))
	for _, e := range entries {
		if !strings.HasSuffix(e.Name, ".json") {
			continue
		}
		data, err := bucket.Download(ctx, e.Name)
		if err != nil {
			log.Warn().Err(err).Str("file", e.Name).Msg("skipping stat record, download failed")
			continue
		}
		var rec models.StatRecord
		if err := json.Unmarshal(data, &rec); err != nil || rec.PaperID == "" {
			log.Warn().Err(err).Str("file", e.Name).Msg("skipping unparsable stat record")
			continue
		}
		records[rec.PaperID] = rec
	}

	log.Debug().Int("records", len(records)).Msg("loaded stat records")
	return records, nil
}
