// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the chat data structures: messages, attachments,
// and the Transcript store that owns the ordered message collection.
//
// The Transcript is the single source of truth for what is rendered; the
// UI layer subscribes to its change notifications rather than keeping its
// own message index.
package model
