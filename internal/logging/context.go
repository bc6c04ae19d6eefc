// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// idKey identifies one of the ids carried on a context and doubles as its log field name.
type idKey string

const (
	correlationIDKey idKey = "correlation_id"
	requestIDKey     idKey = "request_id"
)

// contextIDs is the order in which ids are attached to log lines.
var contextIDs = [...]idKey{correlationIDKey, requestIDKey}

func idFrom(ctx context.Context, key idKey) string {
	id, _ := ctx.Value(key).(string)
	return id
}

// GenerateCorrelationID returns a short random id. Each flush attempt and each replay run gets one.
func GenerateCorrelationID() string {
	return uuid.NewString()[:8]
}

func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return ContextWithCorrelationID(ctx, GenerateCorrelationID())
}

func CorrelationIDFromContext(ctx context.Context) string { return idFrom(ctx, correlationIDKey) }

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string { return idFrom(ctx, requestIDKey) }

// CtxWith starts a child of the global logger carrying every id found on ctx.
//
//	logger := logging.CtxWith(ctx).Str("component", "replay").Logger()
func CtxWith(ctx context.Context) zerolog.Context {
	lc := With()
	for _, key := range contextIDs {
		if id := idFrom(ctx, key); id != "" {
			lc = lc.Str(string(key), id)
		}
	}
	return lc
}

// Ctx is CtxWith(ctx).Logger().
//
//	logging.Ctx(ctx).Info().Int("events", n).Msg("Batch sent")
func Ctx(ctx context.Context) *zerolog.Logger {
	l := CtxWith(ctx).Logger()
	return &l
}

// WithComponent returns a child of the global logger tagged with component.
func WithComponent(component string) zerolog.Logger {
	return With().Str("component", component).Logger()
}
