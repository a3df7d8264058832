package repository

import "gorm.io/gorm"

// The database is opened with TranslateError, so driver constraint errors
// arrive as gorm sentinels. Services match on these names.
var (
	ErrNotFound = gorm.ErrRecordNotFound
	ErrConflict = gorm.ErrDuplicatedKey
)
