// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package files is the HTTP client for the backend file API: listing,
// upload, preview, rename, delete, copy, move, and folder creation.
//
// Every endpoint answers JSON with a success boolean; any response
// without success=true is returned as an *APIError carrying the
// server's message. Failed operations are never retried here; the UI
// shows the message as a transient notification.
package files
