package secrets

// DefaultRules returns the built-in rules. Provider keys come before the
// generic key rules so that they keep their specific label.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "env-credential",
			Description: "Credential environment variable assignment",
			Pattern:     `(OPENAI_API_KEY|ANTHROPIC_API_KEY|SPECULA_DATABASE_URL|AWS_SECRET_ACCESS_KEY)\s*=\s*([^\s]+)`,
			Replacement: "$1=[REDACTED:ENV_SECRET]",
			Severity:    "high",
		},
		{
			ID:          "private-key",
			Description: "PEM private key block",
			Pattern:     `-----BEGIN[ A-Z]*PRIVATE KEY-----[\s\S]*?-----END[ A-Z]*PRIVATE KEY-----`,
			Keywords:    []string{"private key"},
			Severity:    "high",
		},
		{
			ID:          "anthropic-api-key",
			Description: "Anthropic API key",
			Pattern:     `sk-ant-[a-zA-Z0-9_-]{20,}`,
			Keywords:    []string{"sk-ant-"},
			Replacement: "[REDACTED:ANTHROPIC_KEY]",
			Severity:    "high",
		},
		{
			ID:          "openai-api-key",
			Description: "OpenAI API key",
			Pattern:     `sk-(?:proj-)?[a-zA-Z0-9]{20,}`,
			Keywords:    []string{"sk-"},
			Replacement: "[REDACTED:OPENAI_KEY]",
			Severity:    "high",
		},
		{
			ID:          "github-token",
			Description: "GitHub token",
			Pattern:     `gh[pousr]_[A-Za-z0-9]{36,}`,
			Keywords:    []string{"gh"},
			Severity:    "high",
		},
		{
			ID:          "aws-access-key-id",
			Description: "AWS access key id",
			Pattern:     `\b(?:AKIA|ASIA)[A-Z0-9]{16}\b`,
			Replacement: "[REDACTED:AWS_KEY]",
			Severity:    "high",
		},
		{
			ID:          "jwt",
			Description: "JSON Web Token",
			Pattern:     `eyJ[A-Za-z0-9_-]{8,}\.eyJ[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}`,
			Keywords:    []string{"eyJ"},
			Severity:    "medium",
		},
		{
			ID:          "bearer-token",
			Description: "Bearer token",
			Pattern:     `(?i)bearer\s+[a-zA-Z0-9_\-\.=]{20,}`,
			Keywords:    []string{"bearer"},
			Severity:    "high",
		},
		{
			ID:          "generic-api-key",
			Description: "API key assignment",
			Pattern:     `(?i)(api[_-]?key|apikey)\s*[:=]\s*["']?\s*([^"'\s\[][^"'\s]{7,})["']?`,
			Keywords:    []string{"key"},
			Replacement: "$1=[REDACTED:API_KEY]",
			Severity:    "medium",
		},
		{
			ID:          "password",
			Description: "Password assignment",
			Pattern:     `(?i)(password|passwd|pwd)\s*[:=]\s*["']?\s*([^"'\s\[][^"'\s]{3,})["']?`,
			Keywords:    []string{"pass", "pwd"},
			Replacement: "$1=[REDACTED:PASSWORD]",
			Severity:    "medium",
		},
		{
			ID:          "database-url",
			Description: "Database URL with embedded credentials",
			Pattern:     `(postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis)://[^:\s/@]+:[^@\s]+@`,
			Keywords:    []string{"://"},
			Replacement: "$1://[REDACTED:CREDENTIALS]@",
			Severity:    "high",
		},
	}
}
