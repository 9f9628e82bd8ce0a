// Package errs defines common error variables used across the application.
package errs

import "errors"

// Engine failure kinds. The engine adapter classifies every failure into
// exactly one of these; callers branch with errors.Is instead of matching
// message text.
var (
	// ErrAuthRequired indicates the content is login- or cookie-gated.
	ErrAuthRequired = errors.New("authentication required")
	// ErrNotFound indicates the content does not exist or is unavailable.
	ErrNotFound = errors.New("content not found")
	// ErrRateLimited indicates the remote side is throttling requests.
	ErrRateLimited = errors.New("rate limited")
	// ErrTransient indicates a retryable network or subprocess failure.
	ErrTransient = errors.New("transient failure")
	// ErrUnknown indicates a failure that could not be classified.
	ErrUnknown = errors.New("unknown failure")
)

// Engine errors.
var (
	// ErrMetadataParse indicates that the engine metadata output could not be parsed.
	ErrMetadataParse = errors.New("metadata parse failed")
	// ErrBinaryNotFound indicates that a required binary was not found.
	ErrBinaryNotFound = errors.New("binary not found")
	// ErrUnsupportedPlatform indicates that the current platform is not supported.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)

// Run errors.
var (
	// ErrNoItems indicates that a batch contains no items.
	ErrNoItems = errors.New("no items to download")
	// ErrEmptyURL indicates that the URL is empty.
	ErrEmptyURL = errors.New("url is empty")
	// ErrInvalidScheme indicates that the URL does not start with a recognized scheme.
	ErrInvalidScheme = errors.New("url scheme not recognized")
)

// Run configuration errors.
var (
	// ErrCategoryExists indicates that a category with that name already exists.
	ErrCategoryExists = errors.New("category already exists")
	// ErrCategoryNotFound indicates that the named category does not exist.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrCategoryName indicates that the category name is empty or invalid.
	ErrCategoryName = errors.New("invalid category name")
)

// Proxy errors.
var (
	// ErrNoProxiesAvailable indicates that no proxies are available.
	ErrNoProxiesAvailable = errors.New("no proxies available")
)

// Link file errors.
var (
	// ErrLinkFileEmpty indicates that the link file contained no usable URLs.
	ErrLinkFileEmpty = errors.New("link file contains no usable urls")
	// ErrPlaylistFormat indicates that an m3u playlist could not be decoded.
	ErrPlaylistFormat = errors.New("playlist format not recognized")
)
