// Package constants holds the size and timing knobs shared across the
// download and decryption core.
package constants

import "time"

const (
	// GCMWindowSize is the read window used while streaming ciphertext
	// through CTR decryption and GHASH accumulation.
	GCMWindowSize = 1 << 20 // 1 MiB

	// ProgressEmitInterval is the minimum time between progress events for
	// a single task while actively downloading.
	ProgressEmitInterval = 500 * time.Millisecond

	// DirectBackoff is how long the driver prefers relay over direct once
	// a direct fetch has failed for a part.
	DirectBackoff = 300 * time.Second

	// MaxSanitizedNameBytes is the truncation limit for sanitized names.
	MaxSanitizedNameBytes = 255
)

// HTTP client tuning, mirrored from connection-pool-tuned
// client settings.
const (
	HTTPDialTimeout           = 15 * time.Second
	HTTPDialKeepAlive         = 30 * time.Second
	HTTPIdleConnTimeout       = 90 * time.Second
	HTTPTLSHandshakeTimeout   = 30 * time.Second
	HTTPExpectContinueTimeout = 1 * time.Second
)
