package models

// AccountTypeModel is a row of the account_types lookup table.
type AccountTypeModel struct {
	BaseModel
	Title string `gorm:"type:varchar(120);not null;uniqueIndex"`
	Key   string `gorm:"type:varchar(64);not null;uniqueIndex"`
}

// TableName returns the table name for GORM
func (AccountTypeModel) TableName() string {
	return "account_types"
}
