package database

import "gorm.io/gorm"

// Database обёртка над gorm-соединением; все запросы к хранилищу —
// методы на ней. Создаётся через Connect.
type Database struct {
	db *gorm.DB
}
