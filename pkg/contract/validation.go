// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

// Package contract validates request payload sizes for the RPC surface,
// generalizing the teacher's batch_script size guard onto code.patch
// replacement content.
package contract

import (
	"os"
	"strconv"
)

const (
	// DefaultSoftLimitBytes is the baseline soft limit for patch payloads.
	DefaultSoftLimitBytes = 16 << 20 // 16 MiB

	// RequestIDMaxBytes is the maximum length for a request_id field.
	RequestIDMaxBytes = 128
)

// SoftLimitBytes returns the effective soft limit for code.patch content.
// Controlled via env CODEGRAPH_SOFT_LIMIT_BYTES; falls back to DefaultSoftLimitBytes.
func SoftLimitBytes() int {
	if v := os.Getenv("CODEGRAPH_SOFT_LIMIT_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultSoftLimitBytes
}

// ValidationResult is the result of a validation check.
type ValidationResult struct {
	OK      bool
	Message string
}

// ValidatePatchContent checks a code.patch old/new string pair against the
// soft size limit.
func ValidatePatchContent(oldStr, newStr string) *ValidationResult {
	if len(oldStr)+len(newStr) > SoftLimitBytes() {
		return &ValidationResult{OK: false, Message: "patch content exceeds soft limit"}
	}
	return &ValidationResult{OK: true}
}
