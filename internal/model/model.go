// Package model contains the records and DTOs shared by the pipelines and the HTTP layer.
// No business logic lives here.
package model
