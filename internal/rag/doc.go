// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package rag is the HTTP client for the backend document-index API:
// process the uploads directory into retrieval chunks, inspect index
// statistics, and clear the index. Responses follow the same
// success-boolean envelope as the file API.
package rag
