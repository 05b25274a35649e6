package controllers

import (
	"time"
)

const (
	// requestTimeout bounds the store calls of one request
	requestTimeout = 5 * time.Second

	// maxReferenceSaves is how many times a reclamation insert is retried
	// when its reference collides on the unique index
	maxReferenceSaves = 3

	defaultPageSize = 50
	maxPageSize     = 200
)
