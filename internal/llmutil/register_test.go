package llmutil_test

import (
	"testing"

	"github.com/sourcelens/coderag/internal/llm"
	"github.com/sourcelens/coderag/internal/llmutil"
)

func TestRegisterDefaultProviders_RegistersAnthropicAndOpenAI(t *testing.T) {
	factory := llm.NewFactory()
	llmutil.RegisterDefaultProviders(factory)

	for _, name := range []string{"anthropic", "openai", "groq", "huggingface", "ollama", "together", "deepseek", "custom"} {
		if _, err := factory.Create(llm.ProviderConfig{Provider: name, APIKey: "k", Model: "m"}); err != nil {
			t.Errorf("expected provider %q to be registered, got error: %v", name, err)
		}
	}
}

func TestRegisterDefaultProviders_UnknownProviderErrors(t *testing.T) {
	factory := llm.NewFactory()
	llmutil.RegisterDefaultProviders(factory)

	if _, err := factory.Create(llm.ProviderConfig{Provider: "does-not-exist"}); err == nil {
		t.Fatal("expected an error for an unregistered provider")
	}
}
