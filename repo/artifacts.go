package repo

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"gorm.io/gorm"

	"doi-hand/config"
	"doi-hand/models"
	"doi-hand/services"
	"doi-hand/storage"
)

// ArtifactStore legt exportierte Agency-XMLs in S3 ab und hält die Metadaten
// (Datei, Besitzer) in der Datenbank.
type ArtifactStore struct {
	db  *gorm.DB
	s3  *s3.Client
	cfg *config.Config
}

// NewArtifactStore erstellt einen neuen ArtifactStore.
func NewArtifactStore(db *gorm.DB, s3Client *s3.Client, cfg *config.Config) *ArtifactStore {
	return &ArtifactStore{db: db, s3: s3Client, cfg: cfg}
}

// SaveExport lädt das XML nach S3 und legt die Artefakt-Zeile an.
func (s *ArtifactStore) SaveExport(ctx context.Context, jc *models.JournalContext, agencyName, fileName string, data []byte, userID uint) (*models.ExportArtifact, error) {
	key, link, err := storage.UploadExport(ctx, s.s3, s.cfg, fileName, data)
	if err != nil {
		return nil, err
	}

	artifact := models.ExportArtifact{
		ContextID: jc.ID,
		UserID:    userID,
		Agency:    agencyName,
		FileName:  fileName,
		S3Key:     key,
		S3Link:    link,
	}
	if err := s.db.WithContext(ctx).Create(&artifact).Error; err != nil {
		return nil, err
	}
	return &artifact, nil
}

// Fetch lädt den XML-Inhalt eines Artefakts wieder aus S3.
func (s *ArtifactStore) Fetch(ctx context.Context, artifact *models.ExportArtifact) ([]byte, error) {
	return storage.DownloadExport(ctx, s.s3, s.cfg, artifact.S3Key)
}

var _ services.ArtifactStore = (*ArtifactStore)(nil)
