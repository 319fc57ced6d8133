package insight

import "strings"

// promptTemplate instructs the model to answer in the labeled-line
// convention the parser understands. Plain labeled text survives model
// drift far better than a JSON contract; see ParseResponse for the
// receiving side.
const promptTemplate = `You are analyzing TikTok Creator Search Insights screenshots.
Extract EVERY trending search topic visible across all attached screenshots.

Report each trend as one block of labeled lines, exactly in this form:

Trend: <the trending search term>
Category: <Tourism, Sports, Science, Food, Fashion, or other category shown>
Growth: <signed percentage if visible, e.g. +25% or -12%, otherwise omit this line>
Content gap: <yes if marked as a content gap or recommended opportunity, otherwise no>
Audience: <who is searching for this, if you can tell>
Opportunity: <business model> | <estimated monthly revenue range> | <implementation effort>

Rules:
- One blank line between trend blocks.
- Repeat the Opportunity line for each distinct business idea, up to three per trend.
- Omit any line you have no information for instead of guessing.
- Include small niche trends too; do not filter.
- No preamble, no closing summary, no markdown tables.`

// BuildPrompt assembles the instruction prompt, appending optional
// operator-supplied context. Pure and deterministic: identical inputs yield
// byte-identical output.
func BuildPrompt(extraContext string) string {
	extraContext = strings.TrimSpace(extraContext)
	if extraContext == "" {
		return promptTemplate
	}
	return promptTemplate + "\n\nAdditional context from the operator:\n" + extraContext
}
