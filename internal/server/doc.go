// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server implements the development chat backend: a websocket
// chat channel with persistent history, the file workspace API, and
// the document index used for retrieval-augmented prompts.
//
// Endpoints:
//   - GET    /ws                          - Chat websocket (connected, stream, message_updated, error)
//   - GET    /api/files                   - List workspace entries
//   - POST   /api/files/upload            - Upload a file (multipart)
//   - GET    /api/files/{path}/content    - Read a text file
//   - POST   /api/files/{path}/rename     - Rename a file or folder
//   - DELETE /api/files/{path}            - Delete a file or folder
//   - POST   /api/files/bulk-delete       - Delete many entries
//   - POST   /api/files/copy              - Copy files into a folder
//   - POST   /api/files/move              - Move files into a folder
//   - POST   /api/files/folder            - Create a folder
//   - POST   /api/rag/process             - (Re)index workspace documents
//   - POST   /api/rag/clear               - Drop the document index
//   - GET    /api/rag/stats               - Index readiness and counts
//   - GET    /health                      - Health check
//
// Every JSON response carries the {success, ...} envelope; errors add
// an "error" message. Replies on the chat channel come from a
// Responder; the default EchoResponder exercises the full streaming
// pipeline without a model.
//
// # Key Types
//
//   - Server: routing, lifecycle, and the shared stores
//   - Workspace: traversal-safe file operations under the uploads root
//   - HistoryStore: SQLite-backed chat history replayed on connect
//   - DocumentIndex: chunked document store with staleness tracking
//   - Responder: pluggable reply generation
//
// # Usage
//
//	srv, err := server.New(server.Options{
//		Listen:      "127.0.0.1:8130",
//		HistoryPath: cfg.DBPath(),
//		IndexPath:   indexPath,
//		UploadsDir:  cfg.UploadsDir(),
//	})
//	if err != nil {
//		return err
//	}
//	defer srv.Shutdown(ctx)
//	go srv.Start()
package server
