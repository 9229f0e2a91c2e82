package usecase

import (
	"bytes"
	"strings"

	"github.com/goccy/go-json"
)

// LabelOption is a label as presented to the model. Order is significant:
// assignments[i] in the answer refers to the i-th option.
type LabelOption struct {
	Name     string `json:"name"`
	Criteria string `json:"criteria,omitempty"`
}

const batchPromptTemplate = `You are an assistant that classifies a batch of emails against a set of user-defined labels.

Each label has a name and may carry criteria. When criteria are present they take priority; otherwise infer the meaning of the label from its name.

<LABELS>
{{LABELS_JSON}}
</LABELS>

<EMAILS>
{{EMAILS_JSON}}
</EMAILS>

For every email decide, label by label, whether the label applies. Express the decision as an array of booleans in exactly the same order as the labels above.

Answer ONLY with one valid JSON object of this shape and nothing else:
{
  "classifications": [
    {"emailId": "<email id>", "assignments": [true, false, true]}
  ]
}`

const singleLabelPromptTemplate = `You are an assistant that decides, for a batch of emails, whether a single user-defined label applies.

The label has a name and may carry criteria. When criteria are present they take priority; otherwise infer the meaning of the label from its name.

<LABEL>
{{LABELS_JSON}}
</LABEL>

<EMAILS>
{{EMAILS_JSON}}
</EMAILS>

Answer ONLY with one valid JSON object of this shape and nothing else, with one entry per email:
{
  "classifications": [
    {"emailId": "<email id>", "applicable": true}
  ]
}`

// BuildBatchPrompt renders the all-labels prompt for one chunk.
func BuildBatchPrompt(labels []LabelOption, emails []EmailInput) (string, error) {
	return render(batchPromptTemplate, labels, emails)
}

// BuildSingleLabelPrompt renders the one-label prompt for one chunk.
func BuildSingleLabelPrompt(label LabelOption, emails []EmailInput) (string, error) {
	return render(singleLabelPromptTemplate, label, emails)
}

func render(template string, labels any, emails []EmailInput) (string, error) {
	labelJSON, err := indentJSON(labels)
	if err != nil {
		return "", err
	}
	emailJSON, err := indentJSON(emails)
	if err != nil {
		return "", err
	}
	return strings.NewReplacer(
		"{{LABELS_JSON}}", labelJSON,
		"{{EMAILS_JSON}}", emailJSON,
	).Replace(template), nil
}

func indentJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
