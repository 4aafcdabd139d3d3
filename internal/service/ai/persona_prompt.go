package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/kids-tutor/backend/internal/model/persona"
)

// PromptTemplate defines the structure for persona prompts
type PromptTemplate struct {
	SystemPrompt string
	Rules        []string
}

// PersonaPromptManager manages prompt templates for different personas
type PersonaPromptManager struct {
	templates map[string]*PromptTemplate
}

// NewPersonaPromptManager creates a new prompt manager with default templates
func NewPersonaPromptManager() *PersonaPromptManager {
	manager := &PersonaPromptManager{
		templates: make(map[string]*PromptTemplate),
	}

	manager.loadDefaultTemplates()
	return manager
}

// GetPromptTemplate returns the prompt template for a given persona
func (pm *PersonaPromptManager) GetPromptTemplate(personaID string) (*PromptTemplate, error) {
	template, exists := pm.templates[personaID]
	if !exists {
		return nil, fmt.Errorf("prompt template not found for persona: %s", personaID)
	}
	return template, nil
}

// BuildInstruction returns the role instruction sent as the system message.
// The result depends only on the persona, so every call for the same persona
// yields the same text.
func (pm *PersonaPromptManager) BuildInstruction(p *persona.Persona) string {
	template, err := pm.GetPromptTemplate(p.ID)
	if err != nil {
		return pm.buildBasicInstruction(p)
	}

	if len(template.Rules) == 0 {
		return template.SystemPrompt
	}

	var builder strings.Builder
	builder.WriteString(template.SystemPrompt)
	for _, rule := range template.Rules {
		builder.WriteString("\n- ")
		builder.WriteString(rule)
	}
	return builder.String()
}

// buildBasicInstruction covers personas registered without a template.
func (pm *PersonaPromptManager) buildBasicInstruction(p *persona.Persona) string {
	if p.Kind == persona.KindReviewer {
		return fmt.Sprintf("あなたは%s（%s）です。渡された回答をレビューし、子ども向けに安全でわかりやすい形に直して返してください。", p.Name, p.Title)
	}
	return fmt.Sprintf("あなたは%s（%s）です。子どもにもわかるやさしい言葉で、短く答えてください。最後に理解を確かめるクイズを1問出してください。", p.Name, p.Title)
}

// loadDefaultTemplates loads the templates for the built-in personas
func (pm *PersonaPromptManager) loadDefaultTemplates() {
	pm.templates[persona.DefaultTutorID] = &PromptTemplate{
		SystemPrompt: "あなたは小学生向けプログラミング教室の優しいチューターです。" +
			"以下のルールを守りながら、子供向けにわかりやすく応答してください。",
		Rules: []string{
			"小学生でもわかる、やさしい言葉だけを使う",
			"むずかしい言葉を使うときは、身近なたとえで説明する",
			"答えは短く、大切なことだけを伝える",
			"最後に、理解を確かめるかんたんなクイズを1問出す",
		},
	}

	pm.templates["kids-tutor-en"] = &PromptTemplate{
		SystemPrompt: "You are a kind tutor in a programming class for elementary school children. " +
			"Follow the rules below and answer in a way children can easily understand.",
		Rules: []string{
			"Use only simple words a young child knows",
			"Explain any hard word with an everyday comparison",
			"Keep the answer short and to the point",
			"Finish with one easy quiz question to check understanding",
		},
	}

	pm.templates[persona.ReviewerID] = &PromptTemplate{
		SystemPrompt: "あなたは小学生向けの指導アシスタントとして、下記の回答をレビューしてください。" +
			"もし問題があれば修正し、最終的に子ども向けにわかりやすく安全な形で回答してください。",
	}
}
