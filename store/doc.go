// Package store provides the narrow persistence contracts the room
// coordination layer depends on: users by id, rooms with a versioned JSON
// contents blob, token-keyed sessions, and append-only chat messages.
//
// Storage is GORM over SQLite. Each store is a small repository around a
// shared *gorm.DB; callers never see GORM types beyond the models here.
package store
