package extraction

import (
	"strings"

	"github.com/dvloznov/finance-capture/internal/domain"
)

// categoryList renders the closed category set for LLM consumption.
func categoryList() string {
	cats := domain.Categories()
	names := make([]string, 0, len(cats))
	for _, c := range cats {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}

// buildSpeechPrompt constructs the prompt for a spoken transcript.
func buildSpeechPrompt(transcript, locale string) string {
	var b strings.Builder
	b.WriteString("Extract transaction details from this text: \"")
	b.WriteString(transcript)
	b.WriteString("\".\n")
	if locale != "" {
		b.WriteString("The speaker's locale is " + locale + ".\n")
	}
	b.WriteString("Map the category to one of: " + categoryList() + ".\n")
	b.WriteString("If no category fits, use 'Other'.\n")
	b.WriteString("Return JSON with keys \"amount\" (number), \"description\" (string), \"category\" (string).\n")
	return b.String()
}

// buildReceiptPrompt constructs the prompt for a receipt image.
func buildReceiptPrompt() string {
	var b strings.Builder
	b.WriteString("Analyze this receipt. Extract:\n")
	b.WriteString("1. Total amount (number only).\n")
	b.WriteString("2. Merchant name (as description).\n")
	b.WriteString("3. Date (YYYY-MM-DD).\n")
	b.WriteString("4. Category from: " + categoryList() + ".\n")
	b.WriteString("5. Currency code (e.g. TJS, UZS, USD, RUB). If unsure, guess based on location/language or omit.\n\n")
	b.WriteString("Return a raw JSON object with keys: \"amount\", \"description\", \"category\", \"date\", \"currency\".\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Do NOT use ```json or any Markdown.\n")
	b.WriteString("Output must begin with \"{\" and end with \"}\".\n")
	return b.String()
}
