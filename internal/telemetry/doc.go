// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry initializes structured logging and metrics.
//
// Logs are JSON via log/slog, written only to a rotated file so TUI
// output stays clean. Metrics are OpenTelemetry counters exported as
// periodic JSON snapshots to a second rotated file; an OTEL collector
// can still attach through the SDK.
package telemetry
