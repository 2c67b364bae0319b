// Package classifier decides, for one lead's transcript, whether the
// canonical offer template was ever sent and how the lead responded to
// it. It is a pure function of its inputs and drives the
// template_detection and conversation_state processors.
package classifier

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/lendsight/engage-cli/internal/model"
)

// Response is the conversation-outcome bucket for one lead.
type Response string

const (
	// ResponseNoConversation means the transcript was empty or missing.
	ResponseNoConversation Response = "No conversation found"
	// ResponseNoOffer means no outbound message matched the template.
	ResponseNoOffer Response = "No offer sent"
	// ResponseInterested is the canonical positive button reply.
	ResponseInterested Response = "Me interesa"
	// ResponseNotInterested is the canonical negative button reply.
	ResponseNotInterested Response = "de momento no"
	// ResponseIgnored means the offer was sent but no recognized
	// structured reply followed it.
	ResponseIgnored Response = "ignored"
)

// Buckets lists every response value in reporting order.
func Buckets() []Response {
	return []Response{
		ResponseInterested,
		ResponseNotInterested,
		ResponseIgnored,
		ResponseNoOffer,
		ResponseNoConversation,
	}
}

// optionResponses maps normalized button identifiers and labels to
// their canonical response. Derived from the option ids the messaging
// provider attaches to the offer template's quick-reply buttons.
var optionResponses = map[string]Response{
	"interested":     ResponseInterested,
	"me interesa":    ResponseInterested,
	"si me interesa": ResponseInterested,
	"not interested": ResponseNotInterested,
	"not_interested": ResponseNotInterested,
	"de momento no":  ResponseNotInterested,
	"por ahora no":   ResponseNotInterested,
}

// Classify runs the ordered decision list over a transcript. Rules, in
// order, first match wins:
//
//  1. empty transcript            -> (false, "No conversation found")
//  2. no outbound template match  -> (false, "No offer sent")
//  3. recognized structured reply
//     after the template          -> (true, that reply's label)
//  4. anything else               -> (true, "ignored")
//
// The transcript is evaluated in chronological order; equal timestamps
// keep their original sequence order. Malformed reply payloads are
// treated as absent, never as errors.
func Classify(templatePattern string, transcript model.Transcript) (bool, Response) {
	if len(transcript) == 0 {
		return false, ResponseNoConversation
	}

	ordered := transcript.Sorted()
	matchIdx := findTemplate(templatePattern, ordered)
	if matchIdx < 0 {
		return false, ResponseNoOffer
	}

	for i := matchIdx + 1; i < len(ordered); i++ {
		if ordered[i].Sender != model.SenderUser {
			continue
		}
		if resp, ok := parseStructuredReply(ordered[i]); ok {
			return true, resp
		}
	}
	return true, ResponseIgnored
}

// findTemplate returns the index of the earliest outbound message whose
// normalized text matches the normalized template pattern, or -1.
func findTemplate(pattern string, ordered model.Transcript) int {
	normPattern := Normalize(pattern)
	if normPattern == "" {
		return -1
	}

	// A pattern that compiles is used as a regex over normalized text;
	// anything else degrades to a substring match.
	var re *regexp.Regexp
	if compiled, err := regexp.Compile(normPattern); err == nil {
		re = compiled
	}

	for i, msg := range ordered {
		if msg.Sender != model.SenderSystem {
			continue
		}
		text := Normalize(msg.Text)
		if text == "" {
			continue
		}
		if re != nil {
			if re.MatchString(text) {
				return i
			}
			continue
		}
		if strings.Contains(text, normPattern) {
			return i
		}
	}
	return -1
}

// buttonReply is the provider's quick-reply selection payload. Two
// shapes occur in the data: flat and nested under "interactive".
type buttonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type replyPayload struct {
	Type        string       `json:"type"`
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	ButtonReply *buttonReply `json:"button_reply"`
	Interactive *struct {
		Type        string       `json:"type"`
		ButtonReply *buttonReply `json:"button_reply"`
	} `json:"interactive"`
}

// parseStructuredReply extracts the selected option from a message's
// raw payload and maps it to a canonical response. Free-text messages,
// malformed JSON, and unrecognized options all return ok=false.
func parseStructuredReply(msg model.Message) (Response, bool) {
	raw := msg.RawPayload
	if raw == "" {
		// Some sources inline the payload into the text field.
		if t := strings.TrimSpace(msg.Text); strings.HasPrefix(t, "{") {
			raw = t
		} else {
			return "", false
		}
	}

	var payload replyPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return "", false
	}

	candidates := []string{payload.ID, payload.Title}
	if payload.ButtonReply != nil {
		candidates = append(candidates, payload.ButtonReply.ID, payload.ButtonReply.Title)
	}
	if payload.Interactive != nil && payload.Interactive.ButtonReply != nil {
		candidates = append(candidates, payload.Interactive.ButtonReply.ID, payload.Interactive.ButtonReply.Title)
	}

	for _, c := range candidates {
		if c == "" {
			continue
		}
		if resp, ok := optionResponses[Normalize(c)]; ok {
			return resp, true
		}
	}
	return "", false
}

// stripMarks removes combining marks after NFD decomposition, so that
// "sí" and "si" normalize identically.
var stripMarks = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Normalize lower-cases text, strips diacritics, and collapses runs of
// whitespace to single spaces. Used for both template patterns and
// message text so matching is insensitive to accents and formatting.
func Normalize(s string) string {
	stripped, _, err := transform.String(stripMarks, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}
