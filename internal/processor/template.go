package processor

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/lendsight/engage-cli/internal/classifier"
	"github.com/lendsight/engage-cli/internal/model"
)

// TemplateDetection classifies the lead's response to the campaign's
// offer template via the classifier's five-way decision list.
//
// Reads: nothing.
// Writes: offer_detected, user_response.
type TemplateDetection struct{}

func (*TemplateDetection) Name() string { return "template_detection" }

func (*TemplateDetection) OutputKeys() []OutputKey {
	return []OutputKey{
		{Name: "offer_detected", Default: false},
		{Name: "user_response", Default: string(classifier.ResponseNoConversation)},
	}
}

func (*TemplateDetection) Process(_ context.Context, leadCtx *model.Context, transcript model.Transcript, params Params) error {
	pattern := params.String("template_pattern", "")
	if pattern == "" {
		return eris.New("template_detection: template_pattern param is required")
	}

	detected, response := classifier.Classify(pattern, transcript)
	leadCtx.Set("offer_detected", detected)
	leadCtx.Set("user_response", string(response))
	return nil
}

// Engagement states derived by ConversationState.
const (
	StateInterested   = "interested"
	StateDeclined     = "declined"
	StateUnresponsive = "unresponsive"
	StateNoOffer      = "no_offer"
	StateNoContact    = "never_contacted"
)

// defaultStaleAfterHours is how long a lead may stay quiet after a
// positive reply before a follow-up is flagged.
const defaultStaleAfterHours = 48.0

// ConversationState folds the classifier outcome and recency signals
// into a coarse engagement state plus a follow-up flag.
//
// Reads: offer_detected, user_response (template_detection);
// hours_since_last_user_message (temporal, optional).
// Writes: engagement_state, needs_followup.
type ConversationState struct{}

func (*ConversationState) Name() string { return "conversation_state" }

func (*ConversationState) OutputKeys() []OutputKey {
	return []OutputKey{
		{Name: "engagement_state", Default: StateNoContact},
		{Name: "needs_followup", Default: false},
	}
}

func (*ConversationState) Process(_ context.Context, leadCtx *model.Context, transcript model.Transcript, params Params) error {
	response := classifier.Response(leadCtx.GetString("user_response"))
	if response == "" {
		// template_detection did not run earlier; classify directly.
		pattern := params.String("template_pattern", "")
		if pattern == "" {
			return eris.New("conversation_state: needs user_response from template_detection or a template_pattern param")
		}
		_, response = classifier.Classify(pattern, transcript)
	}

	var state string
	switch response {
	case classifier.ResponseInterested:
		state = StateInterested
	case classifier.ResponseNotInterested:
		state = StateDeclined
	case classifier.ResponseIgnored:
		state = StateUnresponsive
	case classifier.ResponseNoOffer:
		state = StateNoOffer
	default:
		state = StateNoContact
	}

	staleAfter := params.Float("stale_after_hours", defaultStaleAfterHours)
	sinceUser := hoursNever
	if v, ok := leadCtx.Get("hours_since_last_user_message"); ok {
		if f, ok := v.(float64); ok {
			sinceUser = f
		}
	}

	// Interested leads always warrant a follow-up; unresponsive ones
	// only once the conversation has gone stale.
	needsFollowup := state == StateInterested ||
		(state == StateUnresponsive && sinceUser >= 0 && sinceUser >= staleAfter)

	leadCtx.Set("engagement_state", state)
	leadCtx.Set("needs_followup", needsFollowup)
	return nil
}
