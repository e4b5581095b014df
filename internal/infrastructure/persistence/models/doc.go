// Package models contains the GORM persistence models touched by bloomctl.
// Only tables that fixtures write to live here; the application owns the
// rest of the schema through SQL migrations.
package models
