package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"carebook-server/internal/logging"
)

// ErrUpstream is returned when the generative model cannot be reached.
var ErrUpstream = errors.New("assistant model request failed")

// OffTopicReply is returned without calling the model when a message does
// not look health related.
const OffTopicReply = "I can only help with health and wellness topics. " +
	"Try asking about nutrition, fitness, sleep, stress, or a symptom you are experiencing."

// Responder produces an assistant reply for an on-topic health question.
type Responder interface {
	Reply(ctx context.Context, message string) (string, error)
}

// healthKeywords gates which messages reach the model at all.
var healthKeywords = []string{
	"health", "medical", "fitness", "exercise", "diet", "nutrition", "wellness",
	"symptom", "disease", "condition", "workout", "sleep", "stress", "anxiety",
	"depression", "medication", "therapy", "doctor", "hospital", "pain",
	"injury", "recovery", "vitamin", "supplement", "weight", "heart", "brain",
	"muscle", "joint", "blood", "pressure", "diabetes", "cancer", "virus",
	"immune", "ache", "headache", "migraine", "fever", "cough", "cold", "flu",
	"nausea", "rash", "fatigue", "allergy", "skin", "stomach", "back",
	"pregnancy", "period", "hormone", "mental", "insomnia", "posture", "yoga",
	"meditation", "hygiene", "checkup", "vaccination",
}

// IsHealthRelated reports whether the message mentions a health topic.
func IsHealthRelated(message string) bool {
	lower := strings.ToLower(message)
	for _, keyword := range healthKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// Assistant is the keyword-filtered AI health assistant. Off-topic messages
// are declined locally; on-topic ones are forwarded to the responder.
type Assistant struct {
	responder Responder
	log       *logging.Logger
}

// NewAssistant creates an assistant. responder may be nil when no model is
// configured; Ask then fails with ErrUpstream for on-topic messages.
func NewAssistant(responder Responder, log *logging.Logger) *Assistant {
	if log == nil {
		log = logging.Default()
	}
	return &Assistant{responder: responder, log: log}
}

// Ask answers one user message.
func (a *Assistant) Ask(ctx context.Context, message string) (string, error) {
	if !IsHealthRelated(message) {
		return OffTopicReply, nil
	}
	if a.responder == nil {
		return "", fmt.Errorf("%w: no model configured", ErrUpstream)
	}

	reply, err := a.responder.Reply(ctx, message)
	if err != nil {
		a.log.Errorw("assistant model call failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return reply, nil
}
