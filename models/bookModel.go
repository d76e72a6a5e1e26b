package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ImageRef points at an uploaded image. Path is a public path for local
// storage or an absolute URL for a remote host; ExternalID is the host's key.
type ImageRef struct {
	Filename     string `json:"filename"`
	Path         string `json:"path"`
	OriginalName string `json:"originalName"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"size"`
	ExternalID   string `json:"externalId,omitempty"`
}

func (r ImageRef) IsZero() bool {
	return r.Path == "" && r.ExternalID == ""
}

type Book struct {
	gorm.Model
	Title       string                       `json:"title" gorm:"size:255;not null"`
	Author      string                       `json:"author" gorm:"size:255;not null"`
	Description string                       `json:"description" gorm:"type:text"`
	Price       decimal.Decimal              `json:"price" gorm:"type:decimal(10,2);not null"`
	Stock       int                          `json:"stock" gorm:"not null;default:0"`
	Category    string                       `json:"category" gorm:"size:100;not null;default:General"`
	CoverImage  datatypes.JSONType[ImageRef] `json:"coverImage"`
}
