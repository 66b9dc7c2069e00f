package gemini

import (
	"fmt"
	"strings"

	"github.com/labelinsight/label-insight/internal/core/ports"
)

// identityMaxChars bounds the OCR snippet sent for identity inference; the
// product name and brand are almost always near the top of the label.
const identityMaxChars = 1500

func buildIdentityPrompt(rawText string) string {
	snippet := rawText
	if len(snippet) > identityMaxChars {
		snippet = snippet[:identityMaxChars]
	}

	return `You identify packaged food products from OCR text of their labels.
Return a strict JSON object with keys:
predicted_product_name (string), predicted_brand (string), ingredients (array of strings), confidence (number from 0 to 1).
Use an empty string or empty array when the label does not show a value. No markdown, no extra keys.

OCR text:
` + snippet
}

const nutritionSystemInstruction = `You convert OCR output of packaged-food labels into structured nutrition data.
Data priority, strictly enforced:
1. Values readable in the OCR data are authoritative.
2. The product directory record, when provided, fills gaps only.
3. Never infer a numeric value that appears in neither source: emit null.
A nutrient value of 0 is only allowed when a source explicitly states 0.`

func buildNutritionPrompt(input ports.NutritionInput) string {
	var b strings.Builder

	b.WriteString("Product name hint: ")
	if input.ProductName != "" {
		b.WriteString(input.ProductName)
	} else {
		b.WriteString("(unknown)")
	}
	b.WriteString("\n\n")

	if len(input.Rows) > 0 {
		b.WriteString("OCR rows (top to bottom, reading order preserved):\n")
		for _, row := range input.Rows {
			b.WriteString(row.Text())
			b.WriteString("\n")
		}
	} else {
		b.WriteString("OCR raw text:\n")
		b.WriteString(input.RawText)
		b.WriteString("\n")
	}

	if input.Enrichment != nil {
		b.WriteString("\nValidated product directory record:\n")
		fmt.Fprintf(&b, "name: %s\nbrand: %s\ningredients: %s\n",
			input.Enrichment.Name, input.Enrichment.Brand, input.Enrichment.IngredientsText)
	}

	b.WriteString(`
Return a strict JSON object with keys:
product_name (string), brand_name (string), ingredients (array of strings),
nutritional_info (object with keys energy_kcal, protein, carbohydrates, sugar, fat, saturated_fat, salt; each a number per 100g or null),
ocr_score (object with keys score, grade, explanation, breakdown, confidence_note).

Compute ocr_score.score with exactly these rules, in order, starting from 50:
+10 if the product has fewer than 5 ingredients.
-15 if sugar exceeds 22.5 g per 100g, or sugar appears among the first three ingredients.
-10 for each ultra-processed additive category present (artificial colors, artificial flavors, preservatives, emulsifiers, sweeteners).
+10 if protein exceeds 10 g per 100g.
-20 if no nutrition data was found in any source.
Clamp the result to the range 0 to 100.
Grade bands: 85 and above A, 70 and above B, 55 and above C, 40 and above D, otherwise E.
List each applied rule in breakdown as {label, points, polarity} with polarity "positive" or "negative".
Use confidence_note to state which values came from OCR, which from the directory record, and which are null.
No markdown, no extra keys.
`)

	return b.String()
}

// stripCodeFences removes a Markdown code fence wrapper, with or without a
// language tag, before JSON parsing.
func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// Drop the language tag line (```json).
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
