package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/alanyoungcy/tokenbook/internal/domain"
)

const (
	exportContentType = "application/json"

	// multipartThreshold switches exports above this size to multipart upload.
	multipartThreshold = 8 * 1024 * 1024
)

// overviewExport is the document written for each export.
type overviewExport struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Count       int                   `json:"count"`
	Assets      []domain.AssetSummary `json:"assets"`
}

// SnapshotExporter writes point-in-time copies of the market overview to
// object storage.
type SnapshotExporter struct {
	writer domain.BlobWriter
	prefix string
}

// NewSnapshotExporter creates an exporter writing under prefix.
func NewSnapshotExporter(writer domain.BlobWriter, prefix string) *SnapshotExporter {
	return &SnapshotExporter{writer: writer, prefix: strings.Trim(prefix, "/")}
}

// Export uploads summaries as one JSON document and returns its key.
func (e *SnapshotExporter) Export(ctx context.Context, summaries []domain.AssetSummary, at time.Time) (string, error) {
	if summaries == nil {
		summaries = []domain.AssetSummary{}
	}
	buf, err := json.Marshal(overviewExport{GeneratedAt: at.UTC(), Count: len(summaries), Assets: summaries})
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal overview export: %w", err)
	}

	key := exportPath(e.prefix, at)
	if len(buf) > multipartThreshold {
		err = e.writer.PutMultipart(ctx, key, bytes.NewReader(buf), minPartSize)
	} else {
		err = e.writer.Put(ctx, key, bytes.NewReader(buf), exportContentType)
	}
	if err != nil {
		return "", fmt.Errorf("s3blob: export overview: %w", err)
	}
	return key, nil
}

// exportPath partitions exports by UTC day:
//
//	overview/2026/05/10/overview-1778414400.json
func exportPath(prefix string, at time.Time) string {
	at = at.UTC()
	name := fmt.Sprintf("overview-%d.json", at.Unix())
	return path.Join(prefix, at.Format("2006/01/02"), name)
}
