package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/remeh/sizedwaitgroup"
	log "github.com/sirupsen/logrus"

	"operator-console/goutils/metadata"
	racemodel "operator-console/race/datamodel"
)

const metadataFetchParallelism = 4

// barColors is the fixed display palette. Assignment is keyed off the id so
// an operator keeps its color across runs.
var barColors = []string{
	"#3b82f6",
	"#ef4444",
	"#10b981",
	"#f59e0b",
	"#8b5cf6",
	"#ec4899",
	"#14b8a6",
	"#f97316",
}

// colorFor derives the palette index from the last hex digit of the id.
func colorFor(operatorID string) string {
	if operatorID == "" {
		return barColors[0]
	}

	last := strings.ToLower(operatorID[len(operatorID)-1:])

	digit, err := strconv.ParseInt(last, 16, 64)
	if err != nil {
		return barColors[0]
	}

	return barColors[digit%int64(len(barColors))]
}

type metadataOperator struct {
	ID                 string `json:"id"`
	MetadataJSONString string `json:"metadataJsonString"`
}

// fetchMetadata loads display metadata for the discovered set in fixed-size
// chunks, chunking keeps each query under the result-size limits. Chunks run
// with bounded parallelism; an operator missing from the response keeps an
// abbreviated-id fallback name.
func (s *Service) fetchMetadata(ctx context.Context, operatorIDs []string) (map[string]racemodel.OperatorMeta, error) {
	metaMap := make(map[string]racemodel.OperatorMeta, len(operatorIDs))

	for _, id := range operatorIDs {
		metaMap[id] = racemodel.OperatorMeta{
			ID:    id,
			Name:  metadata.OperatorMetadata{}.DisplayName(id),
			Color: colorFor(id),
		}
	}

	chunkSize := s.settingsObj.Race.MetadataChunkSize

	var (
		mu       sync.Mutex
		firstErr error
	)

	swg := sizedwaitgroup.New(metadataFetchParallelism)

	for start := 0; start < len(operatorIDs); start += chunkSize {
		end := start + chunkSize
		if end > len(operatorIDs) {
			end = len(operatorIDs)
		}

		chunk := operatorIDs[start:end]
		swg.Add()

		go func(chunk []string) {
			defer swg.Done()

			operators, err := s.queryMetadataChunk(ctx, chunk)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				if firstErr == nil {
					firstErr = err
				}

				return
			}

			for _, op := range operators {
				parsed := metadata.Parse(op.MetadataJSONString, s.settingsObj.Chain.IPFSGatewayFormat)

				meta := metaMap[op.ID]
				if parsed.Name != "" {
					meta.Name = parsed.Name
				}

				metaMap[op.ID] = meta
			}
		}(chunk)
	}

	swg.Wait()

	if firstErr != nil {
		log.WithError(firstErr).Error("metadata chunk fetch failed")

		return nil, firstErr
	}

	return metaMap, nil
}

func (s *Service) queryMetadataChunk(ctx context.Context, ids []string) ([]metadataOperator, error) {
	quoted := make([]string, 0, len(ids))
	for _, id := range ids {
		quoted = append(quoted, `"`+id+`"`)
	}

	query := fmt.Sprintf(`query GetOperatorNames {
		operators(where: {id_in: [%s]}, first: %d) { id metadataJsonString }
	}`, strings.Join(quoted, ", "), len(ids))

	data, err := s.graph.Query(ctx, query, nil)
	if err != nil {
		return nil, err
	}

	result := new(struct {
		Operators []metadataOperator `json:"operators"`
	})

	if err := json.Unmarshal(data, result); err != nil {
		return nil, err
	}

	return result.Operators, nil
}
