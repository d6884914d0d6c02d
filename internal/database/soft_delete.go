package database

import (
	"time"

	"gorm.io/gorm"
)

// Deletable is implemented by reference data that is retired instead of removed.
// Alerts, log events and incidents keep durable references to these rows, so
// a deleted row must stay resolvable by primary key.
type Deletable interface {
	MarkDeleted(at time.Time)
	Deleted() bool
}

// SoftDelete carries the deletion flag and timestamp. Embed it to make a model Deletable.
type SoftDelete struct {
	IsDeleted bool       `gorm:"not null;default:false;index" json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// MarkDeleted flags the row as deleted at the given time
func (s *SoftDelete) MarkDeleted(at time.Time) {
	s.IsDeleted = true
	s.DeletedAt = &at
}

// Deleted reports whether the row has been soft-deleted
func (s *SoftDelete) Deleted() bool {
	return s.IsDeleted
}

// NotDeleted is a query scope that filters out soft-deleted rows.
//
//	db.Scopes(database.NotDeleted).Find(&rules)
func NotDeleted(db *gorm.DB) *gorm.DB {
	return db.Where("is_deleted = ?", false)
}

// IsDeletable reports whether values of the model type carry the soft-delete trait.
func IsDeletable(model interface{}) bool {
	_, ok := model.(Deletable)
	return ok
}
