// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// HTTPClient is the shared client for outbound calls to sibling services.
// One client, one timeout policy.
var HTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}
