package suggest

import (
	"fmt"
	"strings"
)

const promptTemplate = `Analyze the following %s code and provide a comprehensive analysis including:
1. Code quality and best practices
2. Performance optimizations
3. Potential bugs or edge cases
4. Time and space complexity analysis
5. A next-level code suggestion the author should try in order to build their skills
6. An optimized version of the current code with minimal time and space complexity

Code:
%s

Answer with a single JSON object of exactly this shape:
{
  "improvements": ["suggestion1", "suggestion2"],
  "complexity": {"time": "Big O notation", "space": "Big O notation"},
  "explanation": "Brief explanation of the code",
  "purpose": "Inferred purpose of the code",
  "nextLevelSuggestion": {
    "description": "Why this next code will help improve skills",
    "skillsToLearn": ["skill1", "skill2"],
    "code": "Complete code that introduces new concepts",
    "explanation": "Explanation of the new concepts"
  },
  "optimizedVersion": {
    "description": "Optimizations made",
    "complexity": {"time": "Improved time complexity", "space": "Improved space complexity"},
    "code": "Optimized version of the code",
    "improvements": ["improvement1", "improvement2"]
  }
}

Both suggested programs must be complete and runnable. Keep explanations clear and educational.
Your entire response must be valid JSON.`

func buildPrompt(code, language string) string {
	return fmt.Sprintf(promptTemplate, language, code)
}

// extractJSON strips markdown fences and any prose around the outermost object
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return strings.TrimSpace(s)
}
