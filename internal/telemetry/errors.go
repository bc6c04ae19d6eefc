// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package telemetry

import (
	"strings"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/models"
)

// CollectorRejectedError is reported when the collector answered with success=false.
// No event in the batch is considered acknowledged.
type CollectorRejectedError struct {
	Message string
	Errors  []models.EventError
}

// Error lists every per-event error, one per line.
func (e *CollectorRejectedError) Error() string {
	var b strings.Builder
	b.WriteString("API returned errors:\n")
	for _, ee := range e.Errors {
		b.WriteString("- ")
		b.WriteString(ee.ErrorText)
		b.WriteString("\n")
	}
	if len(e.Errors) == 0 && e.Message != "" {
		b.WriteString("- ")
		b.WriteString(e.Message)
		b.WriteString("\n")
	}
	return b.String()
}
