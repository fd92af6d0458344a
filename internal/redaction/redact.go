// Package redaction filters evidence by the caller's capabilities. It only
// removes fields, never fails, and never mutates its input, so cached
// snapshots stay intact.
package redaction

import (
	"github.com/rpggio/interview/internal/domain/capability"
	"github.com/rpggio/interview/internal/domain/evidence"
	"github.com/rpggio/interview/internal/domain/receipt"
)

// Apply returns a copy of ev with every field the caller may not see removed,
// and reports whether anything was removed.
func Apply(ev evidence.Evidence, caps capability.Set, includeBody bool) (evidence.Evidence, bool) {
	out := ev
	redacted := false

	viewArtifacts := caps.Has(capability.ViewArtifacts)
	viewBodies := includeBody && caps.Has(capability.ViewReceipts)

	if len(ev.Receipts) > 0 {
		out.Receipts = make([]receipt.Receipt, len(ev.Receipts))
		for i, r := range ev.Receipts {
			if !viewArtifacts && r.ArtifactPointer != "" {
				r.ArtifactPointer = ""
				r.Redacted = true
			}
			if !viewBodies && r.Body != nil {
				r.Body = nil
				r.Redacted = true
			}
			redacted = redacted || r.Redacted
			out.Receipts[i] = r
		}
	}

	if !viewArtifacts {
		if ev.ManifestPointer != "" {
			out.ManifestPointer = ""
			redacted = true
		}
		if len(ev.Artifacts) > 0 {
			out.Artifacts = make([]evidence.Artifact, len(ev.Artifacts))
			for i, a := range ev.Artifacts {
				if a.Location != "" {
					a.Location = ""
					redacted = true
				}
				out.Artifacts[i] = a
			}
		}
	}

	if ev.Health != nil && !caps.Has(capability.PollHealth) {
		h := *ev.Health
		if h.Metrics != nil || h.Diagnostics != nil {
			h.Metrics = nil
			h.Diagnostics = nil
			redacted = true
		}
		out.Health = &h
	}

	if ev.Queue != nil {
		qe := *ev.Queue
		if !caps.Has(capability.PollQueue) && (qe.Diagnostics != nil || qe.Items != nil) {
			qe.Diagnostics = nil
			qe.Items = nil
			redacted = true
		}
		if !includeBody && qe.Items != nil {
			qe.Items = nil
			redacted = true
		}
		out.Queue = &qe
	}

	return out, redacted
}
