package llmaction

import (
	"encoding/json"
	"fmt"
	"strings"
)

// maxPayloadChars is the safe-truncation limit for extractor input content.
const maxPayloadChars = 100_000

const truncationSuffix = "… (truncated)"

// VisionInput carries a single image for a VLM action (extract.diagram).
type VisionInput struct {
	MIME   string
	Base64 string
}

// truncate safely caps content at maxPayloadChars, appending an explicit
// marker so the model knows the input was cut.
func truncate(content string) string {
	r := []rune(content)
	if len(r) <= maxPayloadChars {
		return content
	}
	return string(r[:maxPayloadChars]) + truncationSuffix
}

// payloadEnvelope is the JSON shape wrapped around a truncated text payload.
type payloadEnvelope struct {
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
}

// buildMessages constructs the two-message conversation the LLM client
// receives: {system: composed prompt}, {user: payload}. For vision actions
// the user message is a multipart content array; otherwise it's the JSON
// envelope of the truncated file content.
func buildMessages(systemPrompt, filePath, content string, vision *VisionInput) ([]Message, error) {
	system := Message{Role: RoleSystem, Content: systemPrompt}

	if vision != nil {
		dataURL := fmt.Sprintf("data:%s;base64,%s", vision.MIME, vision.Base64)
		user := Message{
			Role: RoleUser,
			Parts: []ContentPart{
				{Type: "text", Text: filePath},
				{Type: "image_url", ImageURL: &ImageURL{URL: dataURL}},
			},
		}
		return []Message{system, user}, nil
	}

	envelope := payloadEnvelope{FilePath: filePath, Content: truncate(content)}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal payload envelope: %w", err)
	}
	return []Message{system, {Role: RoleUser, Content: string(raw)}}, nil
}

// jsonModeForPromptFile reports whether the action implies JSON output:
// the action name or its prompt file name contains "extract" or "strict".
func jsonModeForPromptFile(action, promptFile string) bool {
	name := strings.ToLower(action + " " + promptFile)
	return strings.Contains(name, "extract") || strings.Contains(name, "strict")
}
