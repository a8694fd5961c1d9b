package dialogue

import (
	"fmt"
	"strings"

	"github.com/stakesim/stakesim/internal/persona"
)

// Prompt construction for every generation call the engine makes. All
// prompt text lives here so wording changes stay in one file.

// buildTopicPrompt asks for the TOPIC / GENERAL / REASONING triple the
// tolerant parser expects.
func buildTopicPrompt(message string) string {
	var b strings.Builder
	b.WriteString("Classify the topic of this question from a student practicing requirements interviews.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\n", message)
	b.WriteString("Answer in exactly this format:\n")
	b.WriteString("TOPIC: <one or two word topic label>\n")
	b.WriteString("GENERAL: <yes or no, whether the question is general rather than role-specific>\n")
	b.WriteString("REASONING: <one short sentence>\n")
	return b.String()
}

// buildSummaryPrompt asks for an updated 2-3 sentence rolling summary.
func buildSummaryPrompt(priorSummary string, msgs []Message) string {
	var b strings.Builder
	b.WriteString("Update the running summary of a stakeholder interview.\n\n")
	if priorSummary != "" {
		fmt.Fprintf(&b, "Current summary: %s\n\n", priorSummary)
	}
	b.WriteString("Recent conversation:\n")
	writeTranscript(&b, msgs)
	b.WriteString("\nWrite an updated summary in 2-3 sentences. Output only the summary.")
	return b.String()
}

// historyWindow caps how much raw transcript feeds a response prompt. The
// window tracks the summarization interval so un-summarized turns are
// always visible.
func historyWindow(policy InstructorPolicy) int {
	w := policy.SummaryInterval
	if w > 30 {
		w = 30
	}
	if w < 6 {
		w = 6
	}
	return w
}

// buildResponsePrompt produces the in-character prompt for an individual
// persona reply.
func buildResponsePrompt(p persona.Persona, st *State, studentMessage string) string {
	var b strings.Builder
	writePersonaHeader(&b, p, st.Policy.EmphasizePersonality)

	if st.Summary != "" {
		fmt.Fprintf(&b, "Background from earlier in the conversation: %s\n\n", st.Summary)
	}

	msgs := st.Messages
	if w := historyWindow(st.Policy); len(msgs) > w {
		msgs = msgs[len(msgs)-w:]
	}
	b.WriteString("Conversation so far:\n")
	writeTranscript(&b, msgs)

	fmt.Fprintf(&b, "\nThe student asks: %s\n\n", studentMessage)
	b.WriteString("Reply in character as ")
	b.WriteString(p.Name)
	b.WriteString(". Stay concise (2-4 sentences). Never reveal you are an AI. ")
	b.WriteString("Do not claim you already discussed this with teammates unless they actually spoke earlier in this conversation.")
	return b.String()
}

// buildCollaborativePrompt produces the prompt for one speaker in a
// discussion round. roundSoFar holds the teammates' replies already
// generated this turn, in speaking order.
func buildCollaborativePrompt(p persona.Persona, st *State, studentMessage, goal string, roundSoFar []Message, challenge bool) string {
	var b strings.Builder
	writePersonaHeader(&b, p, st.Policy.EmphasizePersonality)

	if st.Summary != "" {
		fmt.Fprintf(&b, "Background from earlier in the conversation: %s\n\n", st.Summary)
	}

	fmt.Fprintf(&b, "The student asked the team: %s\n", studentMessage)
	fmt.Fprintf(&b, "The team is working toward agreement on: %s\n\n", strings.ReplaceAll(goal, "_", " "))

	if len(roundSoFar) == 0 {
		b.WriteString("You speak first. Open the discussion: give your position and invite your teammates to weigh in.\n")
	} else {
		b.WriteString("Teammates have already said in this discussion:\n")
		writeTranscript(&b, roundSoFar)
		if challenge {
			b.WriteString("\nConstructively challenge one of the points above from your role's perspective, then offer an alternative.\n")
		} else {
			b.WriteString("\nBuild on what your teammates said, referring to them by name where natural.\n")
		}
	}

	b.WriteString("\nReply in character as ")
	b.WriteString(p.Name)
	b.WriteString(" in 2-4 sentences. Never reveal you are an AI.")
	return b.String()
}

// buildConsensusPrompt asks for a short team-consensus statement.
func buildConsensusPrompt(goal string, round []Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A project team just discussed: %s\n\n", strings.ReplaceAll(goal, "_", " "))
	b.WriteString("Discussion:\n")
	writeTranscript(&b, round)
	b.WriteString("\nState the team's consensus in 1-2 sentences, starting with \"The team agrees\". Output only the statement.")
	return b.String()
}

// writePersonaHeader writes the role-in-character preamble.
func writePersonaHeader(b *strings.Builder, p persona.Persona, emphasizePersonality bool) {
	fmt.Fprintf(b, "You are %s, %s on this project.\n", p.Name, p.Role)
	fmt.Fprintf(b, "Your goal: %s.\n", p.Goal)
	fmt.Fprintf(b, "Your concerns: %s.\n", p.Concerns)
	if emphasizePersonality {
		fmt.Fprintf(b, "Your personality is %s. Let it come through strongly in every sentence.\n\n", p.Personality)
	} else {
		fmt.Fprintf(b, "Your personality: %s.\n\n", p.Personality)
	}
}

// writeTranscript renders messages as "Speaker: text" lines.
func writeTranscript(b *strings.Builder, msgs []Message) {
	for _, m := range msgs {
		speaker := "Student"
		switch m.Sender {
		case SenderPersona:
			speaker = m.PersonaName
		case SenderSystem:
			speaker = "Moderator"
		}
		fmt.Fprintf(b, "%s: %s\n", speaker, m.Content)
	}
}
