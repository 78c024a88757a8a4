// Package providers links every built-in adapter into the default route
// table. Import it for side effects:
//
//	import _ "github.com/rickchristie/regent/llm/providers"
package providers

import (
	_ "github.com/rickchristie/regent/llm/anthropic"
	_ "github.com/rickchristie/regent/llm/gemini"
	_ "github.com/rickchristie/regent/llm/openai"
	_ "github.com/rickchristie/regent/llm/openrouter"
)
