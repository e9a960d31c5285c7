// Package internalcheck holds static policy tests over the protocol packages.
//
// The tests load the packages with golang.org/x/tools/go/packages and walk
// their syntax trees looking for patterns that tend to leak secrets:
// variable-time comparison of byte arrays, hex formatting verbs in format
// strings, and log attributes named after secret material.
//
// # Internal Use Only
//
// The package has no API; it exists for its tests.
package internalcheck
