package models

import "time"

// ExportArtifact repräsentiert ein exportiertes Agency-XML in S3. Der Download
// ist an den Benutzer gebunden, der den Export angestoßen hat.
type ExportArtifact struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	ContextID uint   `json:"context_id" gorm:"index;not null"`
	UserID    uint   `json:"user_id" gorm:"index;not null"`
	Agency    string `json:"agency"`
	FileName  string `json:"file_name" gorm:"not null"`
	S3Key     string `json:"s3_key" gorm:"not null"`
	S3Link    string `json:"s3_link,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (ExportArtifact) TableName() string {
	return "export_artifacts"
}
