package models

// Sequence hands out monotonically increasing human readable numbers per entity type
type Sequence struct {
	Code    string `gorm:"column:code;primaryKey;type:varchar(30)"`
	Prefix  string `gorm:"column:prefix;type:varchar(10)"`
	Padding int    `gorm:"column:padding;not null"`
	Next    int64  `gorm:"column:next_value;not null"`
}
