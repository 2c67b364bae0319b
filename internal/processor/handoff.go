package processor

import (
	"context"
	"strings"

	"github.com/lendsight/engage-cli/internal/classifier"
	"github.com/lendsight/engage-cli/internal/model"
)

// Default lifecycle marker phrases, matched accent- and
// case-insensitively against outbound messages. Recipes override these
// per campaign.
const (
	defaultInvitePattern   = "te gustaria hablar con un asesor"
	defaultFinalizePattern = "un asesor se pondra en contacto"
	defaultAgentPattern    = "le atiende"
)

// Handoff detects the three stages of the agent-handoff lifecycle:
// the outbound invitation, the lead's reply to it, and the outbound
// finalization notice. The flags are independent; a transcript may
// show a finalization without a recorded reply.
//
// Reads: nothing.
// Writes: handoff_invited, handoff_response, handoff_finalized.
type Handoff struct{}

func (*Handoff) Name() string { return "handoff" }

func (*Handoff) OutputKeys() []OutputKey {
	return []OutputKey{
		{Name: "handoff_invited", Default: false},
		{Name: "handoff_response", Default: ""},
		{Name: "handoff_finalized", Default: false},
	}
}

func (*Handoff) Process(_ context.Context, leadCtx *model.Context, transcript model.Transcript, params Params) error {
	invitePattern := classifier.Normalize(params.String("invitation_pattern", defaultInvitePattern))
	finalizePattern := classifier.Normalize(params.String("finalized_pattern", defaultFinalizePattern))

	ordered := transcript.Sorted()

	inviteIdx := -1
	finalized := false
	for i, msg := range ordered {
		if msg.Sender != model.SenderSystem {
			continue
		}
		text := classifier.Normalize(msg.Text)
		if inviteIdx < 0 && strings.Contains(text, invitePattern) {
			inviteIdx = i
		}
		if strings.Contains(text, finalizePattern) {
			finalized = true
		}
	}

	response := ""
	if inviteIdx >= 0 {
		for i := inviteIdx + 1; i < len(ordered); i++ {
			if ordered[i].Sender == model.SenderUser && strings.TrimSpace(ordered[i].Text) != "" {
				response = ordered[i].Text
				break
			}
		}
	}

	leadCtx.Set("handoff_invited", inviteIdx >= 0)
	leadCtx.Set("handoff_response", response)
	leadCtx.Set("handoff_finalized", finalized)
	return nil
}

// HumanTransfer flags whether a human agent ever took over, and who
// spoke last.
//
// Reads: nothing.
// Writes: human_transfer, last_message_sender.
type HumanTransfer struct{}

func (*HumanTransfer) Name() string { return "human_transfer" }

func (*HumanTransfer) OutputKeys() []OutputKey {
	return []OutputKey{
		{Name: "human_transfer", Default: false},
		{Name: "last_message_sender", Default: "none"},
	}
}

func (*HumanTransfer) Process(_ context.Context, leadCtx *model.Context, transcript model.Transcript, params Params) error {
	agentPattern := classifier.Normalize(params.String("agent_pattern", defaultAgentPattern))

	ordered := transcript.Sorted()

	transferred := false
	for _, msg := range ordered {
		if msg.Sender != model.SenderSystem {
			continue
		}
		if strings.Contains(classifier.Normalize(msg.Text), agentPattern) {
			transferred = true
			break
		}
	}

	sender := "none"
	if last := ordered.LastMessage(); last != nil {
		sender = string(last.Sender)
	}

	leadCtx.Set("human_transfer", transferred)
	leadCtx.Set("last_message_sender", sender)
	return nil
}
