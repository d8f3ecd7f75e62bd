package models

type Category struct {
	ID     uint    `gorm:"primaryKey;column:category_id" json:"category_id"`
	NameAr string  `gorm:"size:100;not null;uniqueIndex" json:"name_ar"`
	NameEn *string `gorm:"size:100" json:"name_en"`
}

func (Category) TableName() string { return "categories" }
