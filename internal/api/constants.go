package api

// API limits and constants.
const (
	// DefaultMaxUploadSize bounds import documents when no limit is configured (10 MB).
	DefaultMaxUploadSize = 10 << 20

	// maxBulkDelete bounds one bulk delete request.
	maxBulkDelete = 500
)

// Cache-Control header values.
const (
	CacheNoStore = "no-store"
)

var bearerSecurity = []map[string][]string{{"bearer": {}}}
