// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

package masker

import "regexp"

// userinfoPattern matches a URL's user:password@host form. The base
// masker layer preserves the username — only the password is replaced
// — while the keyword-assignment pass below masks a bare
// `user=`/`user:` pair too.
var userinfoPattern = regexp.MustCompile(`([a-zA-Z][\w.+-]*):([^@\s/]+)@`)

// keywordPattern matches `key=value` / `key: value` assignments whose
// key is in the closed sensitive-keyword vocabulary we recognize. user
// is included so a bare `user=`/`user:` pair is masked the same as any
// other credential-shaped assignment, resolving spec.md §9 Open
// Question (c) in favor of masking rather than preserving it.
var keywordPattern = regexp.MustCompile(`(?i)\b(password|passwd|pwd|secret|token|api[_-]?key|auth|credential|bearer|private_key|access_token|refresh_token|user)\s*[:=]\s*("?)([^\s"&,}]+)("?)`)

// jsonKeywordPattern matches the same vocabulary in JSON-style
// `"key": "value"` pairs.
var jsonKeywordPattern = regexp.MustCompile(`(?i)"(password|passwd|pwd|secret|token|api[_-]?key|auth|credential|bearer|private_key|access_token|refresh_token|user)"\s*:\s*"([^"]*)"`)

// Enhanced wraps a base Masker and adds the structural redaction layer
// URL userinfo, keyword-assignment pairs, and
// JSON-style key/value pairs drawn from a closed sensitive-keyword
// vocabulary.
type Enhanced struct {
	base *Masker
}

// NewEnhanced wraps base with the structural redaction layer.
func NewEnhanced(base *Masker) *Enhanced {
	return &Enhanced{base: base}
}

// Mask applies the base literal-set mask, then the structural passes,
// in that order: literal secrets are well-known bytes that should be
// gone before the structural regexes even look at the text.
func (e *Enhanced) Mask(text string) string {
	if !e.base.isEnabled() {
		return text
	}
	text = e.base.Mask(text)
	text = userinfoPattern.ReplaceAllString(text, "$1:"+Replacement+"@")
	text = keywordPattern.ReplaceAllString(text, "$1="+Replacement)
	text = jsonKeywordPattern.ReplaceAllString(text, `"$1": "`+Replacement+`"`)
	return text
}

func (m *Masker) isEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}
