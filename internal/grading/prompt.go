package grading

import (
	"fmt"
	"strings"
)

const questionSchemaChoice = `{
  "content": "string (Markdown supported, can include LaTeX)",
  "type": "%s",
  "options": [
    { "content": "string", "isCorrect": boolean }
  ],
  "justification": "string (explanation)"
}`

const questionSchemaText = `{
  "content": "string (Markdown supported, can include LaTeX)",
  "type": "text",
  "justification": "string (explanation)"
}`

func questionSchema(filter TypeFilter) string {
	switch filter {
	case TypesText:
		return questionSchemaText
	case TypesMCQ:
		return fmt.Sprintf(questionSchemaChoice, "single_choice OR multiple_choice")
	default:
		return fmt.Sprintf(questionSchemaChoice, "single_choice OR multiple_choice OR text")
	}
}

func generatePrompt(req GenerateRequest) string {
	var schema string
	if req.Structure == StructureSections {
		schema = fmt.Sprintf(`{
  "title": "string",
  "description": "string",
  "globalTimeLimit": "number (seconds)",
  "sections": [
    {
      "id": "string",
      "title": "string",
      "content": "string (Background info/Passage for this section)",
      "questions": [ %s ]
    }
  ]
}`, questionSchema(req.QuestionType))
	} else {
		schema = fmt.Sprintf(`{
  "title": "string",
  "description": "string",
  "globalTimeLimit": "number (seconds)",
  "questions": [ %s ]
}`, questionSchema(req.QuestionType))
	}

	var typeInstruction string
	switch req.QuestionType {
	case TypesText:
		typeInstruction = "Create ONLY open-ended text questions (no options)."
	case TypesMCQ:
		typeInstruction = "Create ONLY multiple-choice questions with options."
	default:
		typeInstruction = "Create a mix of multiple-choice and text questions."
	}

	structureInstruction := "Create a flat list of questions."
	if req.Structure == StructureSections {
		structureInstruction = `Group questions into logical Sections. Each section MUST have "content" (a reading passage, case study, or context) and a set of related questions.`
	}

	return fmt.Sprintf(`You are an expert International Baccalaureate (IB) Examiner and educational content creator. Create a quiz based on the following syllabus.

SYLLABUS:
%q

REQUIREMENTS:
1. Create exactly %d high-quality questions.
2. %s
3. %s
4. IB STYLE: Use IB command terms (e.g., Define, Explain, Calculate, Discuss, Evaluate, Justify) in the questions. Ensure rigor matches IB Diploma Programme (DP) or Middle Years Programme (MYP) standards.
5. Include at least one math/logic question if relevant (use LaTeX $x^2$).
6. Double-escape backslashes in LaTeX (e.g. \\frac).
7. CRITICAL: Do NOT include any 'imageUrl' fields or references to images. Use descriptive text or ASCII diagrams if needed.

OUTPUT FORMAT:
Return ONLY a valid JSON object matching the detailed structure below.

STRUCTURE:
%s`, req.Syllabus, req.QuestionCount, typeInstruction, structureInstruction, schema)
}

func evaluatePrompt(item EvalItem, appealComment string) string {
	maxPoints := item.Question.Points
	if maxPoints <= 0 {
		maxPoints = 1
	}

	instructionPrefix := "You are an expert International Baccalaureate (IB) Examiner grading a student's answer."
	appealContext := ""
	if appealComment != "" {
		instructionPrefix = "You are reviewing a grade appeal from a student."
		appealContext = fmt.Sprintf(`
STUDENT APPEAL COMMENT: %q

INSTRUCTION: The student disagrees with the previous assessment or wants to clarify their answer. Re-evaluate the answer carefully. If the student's explanation justifies a higher mark based on IB criteria, adjust the score. If not, explain clearly why.`, appealComment)
	}

	return fmt.Sprintf(`%s

QUESTION:
%q

CONTEXT/SECTION CONTENT (if any):
%q

EXPECTED ANSWER / JUSTIFICATION:
%q

STUDENT ANSWER:
%q

MAX POINTS: %g
%s
STANDARD INSTRUCTIONS:
Evaluate the student's answer based on IB assessment criteria (Knowledge & Understanding, Application, Communication).
Give a score between 0 and %g.
Provide concise, constructive feedback in the style of an IB Markscheme.
CRITICAL: If the answer is incorrect or incomplete, EXPLICITLY state what the correct answer should be.

OUTPUT JSON ONLY:
{
  "score": number,
  "feedback": "string"
}`, instructionPrefix, item.Question.Content, orNA(item.SectionContent), orNA(item.Question.Justification), item.Answer, maxPoints, appealContext, maxPoints)
}

func batchPrompt(items []EvalItem) string {
	var payload strings.Builder
	for i, item := range items {
		maxPoints := item.Question.Points
		if maxPoints <= 0 {
			maxPoints = 1
		}
		if i > 0 {
			payload.WriteString("\n-----------------------------------\n")
		}
		fmt.Fprintf(&payload, `[ITEM %d]
ID: %q
QUESTION: %q
CONTEXT: %q
EXPECTED ANSWER/JUSTIFICATION: %q
STUDENT ANSWER: %q
MAX POINTS: %g`, i+1, item.Question.ID, item.Question.Content, orNA(item.SectionContent), orNA(item.Question.Justification), item.Answer, maxPoints)
	}

	return fmt.Sprintf(`You are an expert International Baccalaureate (IB) Examiner grading a set of student answers.

INSTRUCTIONS:
1. Evaluate EACH student answer based on IB assessment criteria (Knowledge & Understanding, Application, Communication).
2. Give a score between 0 and MAX POINTS.
3. Provide concise, constructive feedback in the style of an IB Markscheme (e.g., "Award [1] for...").
4. CRITICAL: If the answer is incorrect or incomplete, EXPLICITLY state what the correct answer should be.

INPUT DATA:
%s

OUTPUT FORMAT:
Return ONLY a valid JSON object mapping Question IDs to their evaluation.

Structure:
{
  "evaluations": {
    "question_id_1": { "score": number, "feedback": "string" },
    "question_id_2": { "score": number, "feedback": "string" }
  }
}`, payload.String())
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
