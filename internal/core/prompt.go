package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const systemPromptFormat = `You are an email assistant for the Illinois MakerLab at the University of Illinois.
Your job is to classify incoming emails and draft helpful replies based on the website content provided.

CLASSIFICATION RULES:
- ANSWERABLE: The email asks a question that can be fully answered using the website content below.
  Examples: summer camp dates/pricing/registration, lab hours, 3D printing pricing, birthday parties, how to order.
- NEEDS_HUMAN: The email requires human judgment, is a complaint, asks something not on the website,
  is about a specific order status, requests a phone call, or is otherwise too nuanced for auto-reply.
  Examples: refund requests, specific order issues, partnership inquiries, job applications, complaints.
- SKIP: The email is spam, a newsletter, an auto-reply (noreply@), a notification, or doesn't need a response.
  Examples: noreply@ addresses, marketing emails, delivery notifications, out-of-office replies.

REPLY RULES (for ANSWERABLE emails):
- Be warm, professional, and concise.
- Address the person by their first name.
- Include specific, relevant links from the website content.
- Always include the registration link for camp-related questions.
- Always mention early bird pricing when relevant.
- Sign off as "Best,\nIllinois MakerLab" (the email signature is added automatically).
- Do NOT make up information. Only use facts from the website content.
- Keep replies under %d words.

Respond in this exact JSON format:
{
  "classification": "ANSWERABLE" | "NEEDS_HUMAN" | "SKIP",
  "confidence": 0.0-1.0,
  "reason": "Brief explanation of classification",
  "reply_html": "HTML reply text (only if ANSWERABLE, otherwise null)"
}`

const userPromptFormat = `Website content for reference:
%s

---

Incoming email to classify and potentially reply to:

From: %s <%s>
First name: %s
Subject: %s
Date: %s

Body:
%s

---

Classify this email and draft a reply if ANSWERABLE. Respond in JSON format.`

// ParseFailureReason is the reason attached to results whose model response
// could not be understood
const ParseFailureReason = "Failed to parse LLM response"

// SystemPrompt returns the classification instruction
func SystemPrompt(maxReplyWords int) string {
	if maxReplyWords <= 0 {
		maxReplyWords = 150
	}
	return fmt.Sprintf(systemPromptFormat, maxReplyWords)
}

// UserPrompt embeds the knowledge context and the message
func UserPrompt(msg *InboundMessage, knowledge string) string {
	return fmt.Sprintf(userPromptFormat,
		knowledge,
		msg.FromName,
		msg.FromEmail,
		FirstName(msg.FromName, msg.FromEmail),
		msg.Subject,
		msg.CreatedAt.Format("2006-01-02 15:04:05"),
		msg.Body,
	)
}

// FirstName guesses a greeting name from the display name, falling back to
// the local part of the address
func FirstName(displayName, email string) string {
	if fields := strings.Fields(displayName); len(fields) > 0 && !strings.Contains(fields[0], "@") {
		return cases.Title(language.English).String(fields[0])
	}
	local, _, _ := strings.Cut(email, "@")
	local, _, _ = strings.Cut(local, ".")
	local = strings.TrimFunc(local, func(r rune) bool { return r >= '0' && r <= '9' })
	if local == "" {
		return "there"
	}
	return cases.Title(language.English).String(local)
}

type classificationResponse struct {
	Classification string  `json:"classification"`
	Confidence     float64 `json:"confidence"`
	Reason         string  `json:"reason"`
	ReplyHTML      *string `json:"reply_html"`
}

// FallbackResult is the safe default used whenever a response is unusable
func FallbackResult(reason, model string) *ClassificationResult {
	return &ClassificationResult{
		Label:      LabelNeedsHuman,
		Confidence: 0,
		Reason:     reason,
		ModelUsed:  model,
		AnalyzedAt: time.Now(),
	}
}

// ParseClassification turns a model response into a result. It never fails:
// unusable responses become a NeedsHuman result with zero confidence.
func ParseClassification(responseText, model string) *ClassificationResult {
	var resp classificationResponse
	if err := json.Unmarshal([]byte(responseText), &resp); err != nil {
		// Models sometimes wrap the object in prose or code fences
		start := strings.Index(responseText, "{")
		end := strings.LastIndex(responseText, "}")
		if start < 0 || end <= start {
			return FallbackResult(ParseFailureReason, model)
		}
		resp = classificationResponse{}
		if err := json.Unmarshal([]byte(responseText[start:end+1]), &resp); err != nil {
			return FallbackResult(ParseFailureReason, model)
		}
	}

	label, ok := ParseLabel(resp.Classification)
	if !ok {
		return FallbackResult(fmt.Sprintf("%s: unknown classification %q", ParseFailureReason, resp.Classification), model)
	}

	result := &ClassificationResult{
		Label:      label,
		Confidence: clamp01(resp.Confidence),
		Reason:     strings.TrimSpace(resp.Reason),
		ModelUsed:  model,
		AnalyzedAt: time.Now(),
	}

	if label == LabelAnswerable {
		if resp.ReplyHTML == nil || strings.TrimSpace(*resp.ReplyHTML) == "" {
			result.Label = LabelNeedsHuman
			result.Reason = strings.TrimSpace(result.Reason + " (marked answerable but no reply was drafted)")
			return result
		}
		result.ReplyHTML = strings.TrimSpace(*resp.ReplyHTML)
	}

	return result
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
