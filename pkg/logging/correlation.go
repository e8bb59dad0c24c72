// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

package logging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type correlationKey struct{}

// NewCorrelationID mints a new "pdk-YYYYMMDD-16hex" identifier.
func NewCorrelationID() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("pdk-%s-%s", time.Now().Format("20060102"), raw[:16])
}

// WithNewCorrelation opens a new nested correlation scope under ctx,
// returning the child context and the identifier it carries. Exiting
// the scope is implicit: once the caller stops using the returned
// context, any code still holding ctx observes the previous (or
// absent) identifier.
func WithNewCorrelation(ctx context.Context) (context.Context, string) {
	id := NewCorrelationID()
	return context.WithValue(ctx, correlationKey{}, id), id
}

// WithCorrelationID binds an existing identifier into ctx, for callers
// that received one from elsewhere (e.g. propagated into a worker).
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the innermost identifier bound to ctx, or ""
// if the pipeline/job/step run establishing one hasn't started.
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(correlationKey{}).(string); ok {
		return v
	}
	return ""
}
