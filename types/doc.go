// Package types provides core types shared across the leadflow handoff service.
// This package has ZERO dependencies on other leadflow packages to avoid circular imports.
// All other packages should import types from here.
package types
