package models

// Upload - фото, загруженное покупателем по ссылке до отправки отзыва
type Upload struct {
	BaseModel
	LinkID          string `gorm:"type:varchar(32);not null;index" json:"linkId"`
	ShopID          string `gorm:"type:varchar(36);not null;index" json:"shopId"`
	Path            string `gorm:"not null" json:"-"`
	ThumbnailPath   string `json:"-"`
	URL             string `json:"url"`
	ThumbnailURL    string `json:"thumbnailUrl,omitempty"`
	MimeType        string `gorm:"type:varchar(64)" json:"mimeType"`
	Size            int64  `json:"size"`
	OriginalName    string `json:"originalName"`
	StorageProvider string `gorm:"type:varchar(32);default:'local'" json:"storageProvider"`
}
