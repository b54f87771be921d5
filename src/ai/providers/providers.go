// Package providers registers every AI provider with core.
package providers

import (
	_ "github.com/stake-plus/netstate-gov/src/ai/anthropic"
	_ "github.com/stake-plus/netstate-gov/src/ai/openai"
)
