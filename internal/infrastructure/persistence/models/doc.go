// Package models holds the GORM row types backing the repositories. Domain
// entities stay free of ORM tags; each model here carries the column
// mappings for one table and converts to and from its domain counterpart.
//
// Files:
// - base.go: BaseModel, the shared id and timestamp columns
// - credential.go: Marketplace credential vault rows
// - order.go: Canonical marketplace orders and their line items
// - inventory.go: Inventory items and the append-only ledger
// - webhook.go: Webhook notification log with dedupe keys
package models
