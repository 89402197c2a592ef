package ai

import "fmt"

// DefaultOptimizeResumePrompt is filled with the masked resume and the job
// description, in that order.
const DefaultOptimizeResumePrompt = `You are an expert resume writer. Your task is to rewrite the provided resume to better match the given job description.

**CRITICAL INSTRUCTION: The resume text contains special placeholders for privacy (e.g., __PERSON_0__, __EMAIL_ADDRESS_1__, __PHONE_NUMBER_0__). YOU MUST PRESERVE THESE PLACEHOLDERS EXACTLY AS THEY ARE. Do NOT alter, remove, rephrase, or modify them in any way. Carry them over to the final output in their original form.**

**Instructions:**
1. Read both the resume and the job description carefully.
2. Identify key skills, responsibilities, and experience required by the job description.
3. Rewrite or add to the existing resume sections to align with the job description, while preserving the placeholders.
4. Prioritize using the exact terminology and phrases from the job description where appropriate.
5. Do NOT remove any existing relevant information from the resume, only rephrase or add.
6. Ensure the optimized resume is well-formatted and easy to read.
7. Return ONLY the full, optimized resume text, without any additional conversational text or explanations.

**Original Resume (with PII placeholders):**
---
%s
---

**Job Description:**
---
%s
---

**Optimized Resume:**
`

// BuildOptimizationPrompt fills template with the masked resume and the job
// description. An empty template selects the default.
func BuildOptimizationPrompt(template, maskedResume, jobDescription string) string {
	if template == "" {
		template = DefaultOptimizeResumePrompt
	}
	return fmt.Sprintf(template, maskedResume, jobDescription)
}

// resolvePrompt selects the first non-empty prompt in priority order:
// loaded from a file, set in configuration, built-in default.
func resolvePrompt(loadedFromFile, fromConfig, fromDefault string) string {
	if loadedFromFile != "" {
		return loadedFromFile
	}
	if fromConfig != "" {
		return fromConfig
	}
	return fromDefault
}
