package subtitling

import (
	"fmt"
	"os"
	"strings"
)

// ArtifactKind はダウンロード対象の成果物の種別を表します。
type ArtifactKind string

const (
	ArtifactSubtitle ArtifactKind = "subtitle"
	ArtifactVideo    ArtifactKind = "video"
)

// Artifact はダウンロード可能な成果物のメタデータです。
type Artifact struct {
	JobID       string
	Kind        ArtifactKind
	Path        string
	Filename    string
	Size        int64
	ContentType string
}

var artifactLayout = map[ArtifactKind]struct {
	suffix       string
	downloadName string
	contentType  string
}{
	ArtifactSubtitle: {suffix: subtitleSuffix, downloadName: "subtitles.srt", contentType: "text/plain; charset=utf-8"},
	ArtifactVideo:    {suffix: videoSuffix, downloadName: "video_with_subtitles.mp4", contentType: "video/mp4"},
}

// OpenArtifact はジョブIDに対応する成果物ファイルを開き、メタデータとファイルハンドルを返します。
// 成果物がまだ存在しない場合は fs.ErrNotExist を内包したエラーを返します。
func (s *Service) OpenArtifact(jobID string, kind ArtifactKind) (*Artifact, *os.File, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, nil, fmt.Errorf("jobID is required")
	}
	layout, ok := artifactLayout[kind]
	if !ok {
		return nil, nil, fmt.Errorf("unsupported artifact kind: %s", kind)
	}

	path := s.store.OutputPath(jobID + layout.suffix)
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, err
	}

	artifact := &Artifact{
		JobID:       jobID,
		Kind:        kind,
		Path:        path,
		Filename:    layout.downloadName,
		Size:        info.Size(),
		ContentType: layout.contentType,
	}
	return artifact, file, nil
}
