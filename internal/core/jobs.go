// Package core provides the business logic ports for the product import system.
package core

import (
	"github.com/jayClean/product-importer/internal/domain/model"
)

// JobType represents the type of job to be executed (re-exported from the model package).
// This is re-exported here for use in HTTP handlers to avoid direct coupling to the model package.
type JobType = model.JobType

// CreateJobRequest represents a request to create a new job (re-exported from the model package).
// This is re-exported here for use in HTTP handlers to avoid direct coupling to the model package.
type CreateJobRequest = model.CreateJobRequest
