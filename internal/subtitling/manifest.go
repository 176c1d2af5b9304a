package subtitling

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

const manifestSuffix = "_manifest.json"

// JobManifest はワーカーがジョブを再開するために必要な情報を保持します。
// アップロードディレクトリに <jobID>_manifest.json として保存されます。
type JobManifest struct {
	JobID        string    `json:"jobId"`
	OriginalName string    `json:"originalName"`
	StoredName   string    `json:"storedName"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"contentType"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (s *Service) manifestPath(jobID string) string {
	return s.store.UploadPath(jobID + manifestSuffix)
}

func (s *Service) writeManifest(manifest *JobManifest) error {
	if manifest == nil {
		return fmt.Errorf("manifest is nil")
	}
	file, err := os.OpenFile(s.manifestPath(manifest.JobID), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(manifest)
}

func (s *Service) loadManifest(jobID string) (*JobManifest, error) {
	data, err := os.ReadFile(s.manifestPath(jobID))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var manifest JobManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &manifest, nil
}
