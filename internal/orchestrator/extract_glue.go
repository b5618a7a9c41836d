package orchestrator

import (
	"github.com/insightdelivered/statement-ledger/internal/extractor"
	"github.com/insightdelivered/statement-ledger/internal/models"
)

func defaultSplit(data []byte) ([]string, error) {
	return extractor.Split(data)
}

func defaultMetadata(pages []string) models.StatementMetadata {
	return extractor.Metadata(pages)
}
