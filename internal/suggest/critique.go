package suggest

import "errors"

type Complexity struct {
	Time  string `json:"time"`
	Space string `json:"space"`
}

type NextLevel struct {
	Description   string   `json:"description"`
	SkillsToLearn []string `json:"skillsToLearn"`
	Code          string   `json:"code"`
	Explanation   string   `json:"explanation"`
}

type Optimized struct {
	Description  string     `json:"description"`
	Complexity   Complexity `json:"complexity"`
	Code         string     `json:"code"`
	Improvements []string   `json:"improvements"`
}

// Critique is the structured review returned to the editor
type Critique struct {
	Improvements        []string   `json:"improvements"`
	Complexity          Complexity `json:"complexity"`
	Explanation         string     `json:"explanation"`
	Purpose             string     `json:"purpose"`
	NextLevelSuggestion NextLevel  `json:"nextLevelSuggestion"`
	OptimizedVersion    Optimized  `json:"optimizedVersion"`
}

var errIncomplete = errors.New("critique lacks explanation or complexity")

// validate rejects answers that decoded as JSON but carry no critique,
// such as null, {} or an object with unrelated keys.
func (c *Critique) validate() error {
	if c.Explanation == "" || c.Complexity.Time == "" || c.Complexity.Space == "" {
		return errIncomplete
	}
	return nil
}
