package redaction_test

import (
	"testing"

	"github.com/rpggio/interview/internal/domain/capability"
	"github.com/rpggio/interview/internal/domain/evidence"
	"github.com/rpggio/interview/internal/domain/receipt"
	"github.com/rpggio/interview/internal/redaction"
	"github.com/stretchr/testify/require"
)

func fullEvidence() evidence.Evidence {
	return evidence.Evidence{
		Receipts: []receipt.Receipt{{
			ReceiptID:       "a",
			Kind:            receipt.KindComplete,
			ArtifactPointer: "s3://depot/out.tar",
			Body:            map[string]any{"outcome": "ok"},
		}},
		Artifacts:       []evidence.Artifact{{ArtifactID: "art-1", Location: "s3://depot/art-1"}},
		ManifestPointer: "s3://depot/manifest.json",
		Health: &evidence.Health{
			ComponentID: "asyncgate",
			Metrics:     &evidence.MetricsSnapshot{QueuedCount: 1},
			Diagnostics: map[string]any{"db": "ok"},
		},
		Queue: &evidence.Queue{
			QueueDepth:  3,
			Items:       []evidence.QueueItem{{TaskID: "t"}},
			Diagnostics: map[string]any{"lag": 1},
		},
	}
}

func TestApply_StripsArtifactPointersWithoutCapability(t *testing.T) {
	out, redacted := redaction.Apply(fullEvidence(), capability.NewSet(capability.ViewReceipts), true)
	require.True(t, redacted)
	require.Empty(t, out.Receipts[0].ArtifactPointer)
	require.True(t, out.Receipts[0].Redacted)
	require.Empty(t, out.Artifacts[0].Location)
	require.Equal(t, "art-1", out.Artifacts[0].ArtifactID)
	require.Empty(t, out.ManifestPointer)
	require.NotNil(t, out.Receipts[0].Body, "body kept with include_body and can_view_receipts")
}

func TestApply_BodyNeedsRequestAndCapability(t *testing.T) {
	all := capability.NewSet(capability.All()...)

	out, _ := redaction.Apply(fullEvidence(), all, false)
	require.Nil(t, out.Receipts[0].Body)

	out, _ = redaction.Apply(fullEvidence(), capability.NewSet(capability.ViewArtifacts), true)
	require.Nil(t, out.Receipts[0].Body)

	out, _ = redaction.Apply(fullEvidence(), all, true)
	require.Equal(t, "ok", out.Receipts[0].Body["outcome"])
	require.Equal(t, "s3://depot/out.tar", out.Receipts[0].ArtifactPointer)
	require.False(t, out.Receipts[0].Redacted)
}

func TestApply_DiagnosticsNeedPollCapabilities(t *testing.T) {
	out, redacted := redaction.Apply(fullEvidence(), capability.NewSet(), true)
	require.True(t, redacted)
	require.Nil(t, out.Health.Metrics)
	require.Nil(t, out.Health.Diagnostics)
	require.Equal(t, "asyncgate", out.Health.ComponentID)
	require.Nil(t, out.Queue.Items)
	require.Nil(t, out.Queue.Diagnostics)
	require.Equal(t, 3, out.Queue.QueueDepth)

	out, _ = redaction.Apply(fullEvidence(), capability.NewSet(capability.PollHealth, capability.PollQueue), true)
	require.NotNil(t, out.Health.Metrics)
	require.Len(t, out.Queue.Items, 1)
}

func TestApply_QueueItemsOnlyWhenRequested(t *testing.T) {
	out, _ := redaction.Apply(fullEvidence(), capability.NewSet(capability.PollQueue), false)
	require.Nil(t, out.Queue.Items)
	require.NotNil(t, out.Queue.Diagnostics)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	in := fullEvidence()
	_, _ = redaction.Apply(in, capability.NewSet(), false)
	require.Equal(t, fullEvidence(), in)
}

func TestApply_NothingToRedact(t *testing.T) {
	ev := evidence.Evidence{Receipts: []receipt.Receipt{{ReceiptID: "a", Kind: receipt.KindAccepted}}}
	out, redacted := redaction.Apply(ev, capability.NewSet(), false)
	require.False(t, redacted)
	require.Equal(t, ev, out)
}
