// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

package github

import (
	"strings"

	"pdk/pkg/model"
	"pdk/pkg/parser"
)

// usesPrefixes maps `uses:` reference prefixes to the step kind they
// represent. Checked in order so the most specific prefix wins.
var usesPrefixes = []struct {
	prefix string
	kind   model.StepKind
}{
	{"actions/checkout", model.StepKindCheckout},
	{"actions/upload-artifact", model.StepKindUploadArtifact},
	{"actions/download-artifact", model.StepKindDownloadArtifact},
	{"actions/setup-dotnet", model.StepKindDotnet},
	{"actions/setup-node", model.StepKindNpm},
	{"actions/setup-python", model.StepKindPython},
	{"actions/setup-java", model.StepKindMaven},
	{"gradle/gradle-build-action", model.StepKindGradle},
	{"docker/build-push-action", model.StepKindDocker},
	{"docker/login-action", model.StepKindDocker},
}

// ClassifyUses maps a `uses:` reference to a step kind and an ActionRef
// recording its owner/repo/ref split. Every non-empty reference gets an
// ActionRef; parts the reference lacks (no '/', no '@') are left empty.
// An empty uses string (a `run:` step) is not handled here.
func ClassifyUses(uses string) (model.StepKind, *parser.ActionRef) {
	if uses == "" {
		return model.StepKindUnknown, nil
	}

	kind := model.StepKindUnknown
	for _, p := range usesPrefixes {
		if strings.HasPrefix(uses, p.prefix) {
			kind = p.kind
			break
		}
	}

	ref := splitActionRef(uses)
	return kind, ref
}

// splitActionRef parses "owner/repo@ref" (optionally "owner/repo/sub@ref")
// into an ActionRef, following gh-actlock's WorkflowAction shape.
func splitActionRef(uses string) *parser.ActionRef {
	if strings.HasPrefix(uses, "docker://") {
		return &parser.ActionRef{Owner: "", Repo: strings.TrimPrefix(uses, "docker://"), Ref: ""}
	}

	name, ref, hasRef := strings.Cut(uses, "@")
	if !hasRef {
		ref = ""
	}
	parts := strings.SplitN(name, "/", 2)
	if len(parts) != 2 {
		return &parser.ActionRef{Owner: "", Repo: name, Ref: ref}
	}
	return &parser.ActionRef{Owner: parts[0], Repo: parts[1], Ref: ref}
}
