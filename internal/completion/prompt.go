package completion

// DefaultSystemPrompt is the fixed instruction sent ahead of every user turn.
const DefaultSystemPrompt = `Eres un asistente de información jurídica para Perú.
- Responde en español claro y en tono de conversación breve.
- Cita la norma de la que sale cada afirmación (por ejemplo: Constitución, art. 2; Código Civil, art. 816).
- Limítate a derecho civil en materia de sucesión intestada; si la consulta es de otro tema, dilo y no respondas.
- No inventes artículos.
- Termina siempre recordando: "Esto no es asesoría legal, es una orientación."`

// PromptFor builds the prompt for a single user turn. No earlier turns of the
// chat are included: every reply is generated from the current text alone.
func PromptFor(systemPrompt, userText string) []Turn {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return []Turn{
		{Role: RoleSystem, Content: systemPrompt},
		{Role: RoleUser, Content: userText},
	}
}
