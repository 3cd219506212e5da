// errors.go: Sentinel errors
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemo

import "errors"

// Pre-allocated errors to avoid allocations in hot paths
var (
	ErrClosed          = errors.New("mnemo: engine closed")
	ErrAlreadyStarted  = errors.New("mnemo: engine already started")
	ErrShutdownTimeout = errors.New("mnemo: shutdown did not complete before the timeout")
	ErrQueueFull       = errors.New("mnemo: event queue full, processing on caller")
	ErrNoUploader      = errors.New("mnemo: upload enabled but no uploader configured")
)
