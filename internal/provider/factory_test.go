package provider

import (
	"testing"

	"laureate/internal/config"
)

func TestNew_GroqPreset(t *testing.T) {
	p, err := New(config.ProviderConfig{
		Endpoint:    config.Endpoint{Name: "groq", APIKey: "k"},
		Temperature: 0.1,
	}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	oa, ok := p.(*OpenAI)
	if !ok {
		t.Fatalf("expected *OpenAI, got %T", p)
	}
	if oa.Model() != "meta-llama/llama-4-scout-17b-16e-instruct" {
		t.Errorf("unexpected model %q", oa.Model())
	}
}

func TestNew_UnknownWithoutBase(t *testing.T) {
	_, err := New(config.ProviderConfig{Endpoint: config.Endpoint{Name: "mystery", Model: "m"}}, testLogger())
	if err == nil {
		t.Fatal("expected error for unknown provider without apiBase")
	}
}

func TestNew_CustomCompatible(t *testing.T) {
	p, err := New(config.ProviderConfig{
		Endpoint: config.Endpoint{Name: "local", APIBase: "http://127.0.0.1:8080/v1", Model: "qwen"},
	}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "local" {
		t.Errorf("unexpected name %q", p.Name())
	}
}

func TestNew_WithFallbacksBuildsChain(t *testing.T) {
	p, err := New(config.ProviderConfig{
		Endpoint:  config.Endpoint{Name: "groq", APIKey: "k"},
		Fallbacks: []config.Endpoint{{Name: "ollama"}},
	}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*FailoverProvider); !ok {
		t.Fatalf("expected *FailoverProvider, got %T", p)
	}
	if p.Name() != "failover(groq→ollama)" {
		t.Errorf("unexpected name %q", p.Name())
	}
}

func TestKnown(t *testing.T) {
	if !Known("groq") || Known("nope") {
		t.Error("unexpected Known result")
	}
}
